// Package fda wraps the openFDA REST API: drug adverse events, drug
// labeling, enforcement reports and device events. Queries follow the
// openFDA search syntax; a missing match surfaces as a 404 from the
// API and maps to the no_results error.
package fda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/satchelworks/satchel/internal/httpx"
)

// DefaultBaseURL is the public openFDA endpoint.
const DefaultBaseURL = "https://api.fda.gov"

// Client calls openFDA endpoints through the shared HTTP client.
type Client struct {
	client *httpx.Client
	base   string
	apiKey string
}

// NewClient returns a Client. An empty baseURL selects the public
// endpoint; the API key is optional and raises openFDA's rate limits.
func NewClient(hc *httpx.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{client: hc, base: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// Query is one openFDA request. Search and Count use the openFDA
// field syntax, e.g. `patient.drug.medicinalproduct:"aspirin"`.
type Query struct {
	Search string
	Count  string
	Sort   string
	Limit  int
	Skip   int
}

// Term builds one quoted search term.
func Term(field, value string) string {
	return field + `:"` + value + `"`
}

// And joins search terms with the openFDA AND operator.
func And(terms ...string) string {
	return strings.Join(terms, " AND ")
}

// Response is the openFDA envelope with results left raw for typed
// decoding by the endpoint helpers.
type Response struct {
	Meta struct {
		Results struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

// Search performs a raw query against one endpoint, e.g. "drug/event".
func (c *Client) Search(ctx context.Context, endpoint string, q Query) (*Response, error) {
	var resp Response
	if err := c.client.GetJSON(ctx, c.url(endpoint, q), &resp); err != nil {
		return nil, fmt.Errorf("openFDA %s: %w", endpoint, err)
	}
	return &resp, nil
}

// CountResult is one bucket of an openFDA count query.
type CountResult struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// CountQuery runs a count aggregation against one endpoint.
func (c *Client) CountQuery(ctx context.Context, endpoint string, q Query) ([]CountResult, error) {
	var resp struct {
		Results []CountResult `json:"results"`
	}
	if err := c.client.GetJSON(ctx, c.url(endpoint, q), &resp); err != nil {
		return nil, fmt.Errorf("openFDA %s count: %w", endpoint, err)
	}
	return resp.Results, nil
}

// EventReport is a slim view of one adverse event report.
type EventReport struct {
	SafetyReportID string   `json:"safety_report_id"`
	ReceiveDate    string   `json:"receive_date"`
	Serious        string   `json:"serious"`
	Reactions      []string `json:"reactions"`
}

// SearchEvents returns adverse event reports mentioning drug.
func (c *Client) SearchEvents(ctx context.Context, drug string, limit int) (int, []EventReport, error) {
	resp, err := c.Search(ctx, "drug/event", Query{
		Search: Term("patient.drug.medicinalproduct", drug),
		Limit:  limit,
	})
	if err != nil {
		return 0, nil, err
	}

	reports := make([]EventReport, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var rec struct {
			SafetyReportID string `json:"safetyreportid"`
			ReceiveDate    string `json:"receivedate"`
			Serious        string `json:"serious"`
			Patient        struct {
				Reaction []struct {
					ReactionMedDRAPT string `json:"reactionmeddrapt"`
				} `json:"reaction"`
			} `json:"patient"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		report := EventReport{
			SafetyReportID: rec.SafetyReportID,
			ReceiveDate:    rec.ReceiveDate,
			Serious:        rec.Serious,
		}
		for _, r := range rec.Patient.Reaction {
			if r.ReactionMedDRAPT != "" {
				report.Reactions = append(report.Reactions, r.ReactionMedDRAPT)
			}
		}
		reports = append(reports, report)
	}
	return resp.Meta.Results.Total, reports, nil
}

// TopReactions aggregates the most reported reactions for drug.
func (c *Client) TopReactions(ctx context.Context, drug string, limit int) ([]CountResult, error) {
	return c.CountQuery(ctx, "drug/event", Query{
		Search: Term("patient.drug.medicinalproduct", drug),
		Count:  "patient.reaction.reactionmeddrapt.exact",
		Limit:  limit,
	})
}

// Label is a slim view of a drug label.
type Label struct {
	BrandName    string   `json:"brand_name"`
	GenericName  string   `json:"generic_name"`
	Manufacturer string   `json:"manufacturer"`
	Indications  []string `json:"indications"`
	Warnings     []string `json:"warnings"`
	Dosage       []string `json:"dosage"`
}

// DrugLabel fetches the labeling record for a brand name.
func (c *Client) DrugLabel(ctx context.Context, brand string) (*Label, error) {
	resp, err := c.Search(ctx, "drug/label", Query{
		Search: Term("openfda.brand_name", brand),
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("label for %q: %w", brand, httpx.ErrNoResults)
	}

	var rec struct {
		IndicationsAndUsage     []string `json:"indications_and_usage"`
		Warnings                []string `json:"warnings"`
		DosageAndAdministration []string `json:"dosage_and_administration"`
		OpenFDA                 struct {
			BrandName        []string `json:"brand_name"`
			GenericName      []string `json:"generic_name"`
			ManufacturerName []string `json:"manufacturer_name"`
		} `json:"openfda"`
	}
	if err := json.Unmarshal(resp.Results[0], &rec); err != nil {
		return nil, fmt.Errorf("decode label: %w", err)
	}

	label := &Label{
		Indications: rec.IndicationsAndUsage,
		Warnings:    rec.Warnings,
		Dosage:      rec.DosageAndAdministration,
	}
	if len(rec.OpenFDA.BrandName) > 0 {
		label.BrandName = rec.OpenFDA.BrandName[0]
	}
	if len(rec.OpenFDA.GenericName) > 0 {
		label.GenericName = rec.OpenFDA.GenericName[0]
	}
	if len(rec.OpenFDA.ManufacturerName) > 0 {
		label.Manufacturer = rec.OpenFDA.ManufacturerName[0]
	}
	return label, nil
}

// Recall is a slim view of one enforcement report.
type Recall struct {
	RecallNumber   string `json:"recall_number"`
	Classification string `json:"classification"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	Product        string `json:"product"`
	InitiationDate string `json:"initiation_date"`
	State          string `json:"state"`
}

// Enforcement returns recall reports matching the product search term.
func (c *Client) Enforcement(ctx context.Context, product string, limit int) (int, []Recall, error) {
	resp, err := c.Search(ctx, "drug/enforcement", Query{
		Search: Term("product_description", product),
		Sort:   "recall_initiation_date:desc",
		Limit:  limit,
	})
	if err != nil {
		return 0, nil, err
	}

	recalls := make([]Recall, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var rec struct {
			RecallNumber         string `json:"recall_number"`
			Classification       string `json:"classification"`
			Status               string `json:"status"`
			ReasonForRecall      string `json:"reason_for_recall"`
			ProductDescription   string `json:"product_description"`
			RecallInitiationDate string `json:"recall_initiation_date"`
			State                string `json:"state"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		recalls = append(recalls, Recall{
			RecallNumber:   rec.RecallNumber,
			Classification: rec.Classification,
			Status:         rec.Status,
			Reason:         rec.ReasonForRecall,
			Product:        rec.ProductDescription,
			InitiationDate: rec.RecallInitiationDate,
			State:          rec.State,
		})
	}
	return resp.Meta.Results.Total, recalls, nil
}

// DeviceEvent is a slim view of one device adverse event.
type DeviceEvent struct {
	EventType    string `json:"event_type"`
	DateReceived string `json:"date_received"`
	BrandName    string `json:"brand_name"`
}

// DeviceEvents returns adverse events for a device brand name.
func (c *Client) DeviceEvents(ctx context.Context, device string, limit int) (int, []DeviceEvent, error) {
	resp, err := c.Search(ctx, "device/event", Query{
		Search: Term("device.brand_name", device),
		Limit:  limit,
	})
	if err != nil {
		return 0, nil, err
	}

	events := make([]DeviceEvent, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var rec struct {
			EventType    string `json:"event_type"`
			DateReceived string `json:"date_received"`
			Device       []struct {
				BrandName string `json:"brand_name"`
			} `json:"device"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		ev := DeviceEvent{EventType: rec.EventType, DateReceived: rec.DateReceived}
		if len(rec.Device) > 0 {
			ev.BrandName = rec.Device[0].BrandName
		}
		events = append(events, ev)
	}
	return resp.Meta.Results.Total, events, nil
}

func (c *Client) url(endpoint string, q Query) string {
	values := url.Values{}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Count != "" {
		values.Set("count", q.Count)
	}
	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Skip > 0 {
		values.Set("skip", strconv.Itoa(q.Skip))
	}
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}
	return c.base + "/" + endpoint + ".json?" + values.Encode()
}
