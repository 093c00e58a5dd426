package fda

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/satchelworks/satchel/internal/httpx"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := httpx.New(httpx.Config{Retry: httpx.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}})
	return NewClient(hc, srv.URL, "test-key")
}

func TestSearchEvents(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drug/event.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("search"); got != `patient.drug.medicinalproduct:"aspirin"` {
			t.Errorf("search = %q", got)
		}
		if q.Get("limit") != "2" || q.Get("api_key") != "test-key" {
			t.Errorf("params = %v", q)
		}
		w.Write([]byte(`{
			"meta": {"results": {"skip": 0, "limit": 2, "total": 120}},
			"results": [
				{"safetyreportid": "r1", "receivedate": "20250110", "serious": "1",
				 "patient": {"reaction": [{"reactionmeddrapt": "NAUSEA"}, {"reactionmeddrapt": "HEADACHE"}]}},
				{"safetyreportid": "r2", "receivedate": "20250111", "serious": "2",
				 "patient": {"reaction": [{"reactionmeddrapt": "RASH"}]}}
			]
		}`))
	}))

	total, reports, err := c.SearchEvents(context.Background(), "aspirin", 2)
	if err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}
	if total != 120 {
		t.Errorf("total = %d, want 120", total)
	}
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	r0 := reports[0]
	if r0.SafetyReportID != "r1" || r0.Serious != "1" || len(r0.Reactions) != 2 || r0.Reactions[0] != "NAUSEA" {
		t.Errorf("report = %+v", r0)
	}
}

func TestTopReactions(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("count"); got != "patient.reaction.reactionmeddrapt.exact" {
			t.Errorf("count = %q", got)
		}
		w.Write([]byte(`{"results": [{"term": "NAUSEA", "count": 42}, {"term": "RASH", "count": 17}]}`))
	}))

	counts, err := c.TopReactions(context.Background(), "aspirin", 10)
	if err != nil {
		t.Fatalf("TopReactions: %v", err)
	}
	if len(counts) != 2 || counts[0].Term != "NAUSEA" || counts[0].Count != 42 {
		t.Errorf("counts = %+v", counts)
	}
}

func TestDrugLabel(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drug/label.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"meta": {"results": {"skip": 0, "limit": 1, "total": 1}},
			"results": [{
				"indications_and_usage": ["For temporary relief of minor aches."],
				"warnings": ["Reye's syndrome warning."],
				"dosage_and_administration": ["Adults: 1-2 tablets every 4 hours."],
				"openfda": {"brand_name": ["ASPIRIN"], "generic_name": ["ASPIRIN"], "manufacturer_name": ["Acme Pharma"]}
			}]
		}`))
	}))

	label, err := c.DrugLabel(context.Background(), "aspirin")
	if err != nil {
		t.Fatalf("DrugLabel: %v", err)
	}
	if label.BrandName != "ASPIRIN" || label.Manufacturer != "Acme Pharma" {
		t.Errorf("label = %+v", label)
	}
	if len(label.Warnings) != 1 || label.Warnings[0] != "Reye's syndrome warning." {
		t.Errorf("warnings = %v", label.Warnings)
	}
}

func TestEnforcement(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sort"); got != "recall_initiation_date:desc" {
			t.Errorf("sort = %q", got)
		}
		w.Write([]byte(`{
			"meta": {"results": {"skip": 0, "limit": 1, "total": 3}},
			"results": [{
				"recall_number": "D-123-2026", "classification": "Class II", "status": "Ongoing",
				"reason_for_recall": "Subpotent drug", "product_description": "Aspirin 81mg tablets",
				"recall_initiation_date": "20260102", "state": "NY"
			}]
		}`))
	}))

	total, recalls, err := c.Enforcement(context.Background(), "aspirin", 1)
	if err != nil {
		t.Fatalf("Enforcement: %v", err)
	}
	if total != 3 || len(recalls) != 1 {
		t.Fatalf("total = %d, recalls = %d", total, len(recalls))
	}
	if recalls[0].RecallNumber != "D-123-2026" || recalls[0].Classification != "Class II" {
		t.Errorf("recall = %+v", recalls[0])
	}
}

func TestDeviceEvents(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/event.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"meta": {"results": {"skip": 0, "limit": 1, "total": 9}},
			"results": [{"event_type": "Malfunction", "date_received": "20260201", "device": [{"brand_name": "PulseFit"}]}]
		}`))
	}))

	total, events, err := c.DeviceEvents(context.Background(), "PulseFit", 1)
	if err != nil {
		t.Fatalf("DeviceEvents: %v", err)
	}
	if total != 9 || len(events) != 1 || events[0].BrandName != "PulseFit" {
		t.Errorf("events = %+v (total %d)", events, total)
	}
}

func TestNoMatchesMapsToNoResults(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, _, err := c.SearchEvents(context.Background(), "nosuchdrug", 5)
	if !errors.Is(err, httpx.ErrNoResults) {
		t.Errorf("err = %v, want ErrNoResults", err)
	}
}

func TestAnd(t *testing.T) {
	got := And(Term("patient.drug.medicinalproduct", "aspirin"), "serious:1")
	want := `patient.drug.medicinalproduct:"aspirin" AND serious:1`
	if got != want {
		t.Errorf("And = %q, want %q", got, want)
	}
}
