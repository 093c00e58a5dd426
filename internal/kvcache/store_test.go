package kvcache

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)
	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("versions = %v, want [1 ...]", versions)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := map[string]any{"name": "acme", "employees": float64(120)}
	if err := s.Set("company:acme", in, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	it, err := s.Get("company:acme")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if it.Codec != "json" {
		t.Errorf("codec = %q, want json", it.Codec)
	}
	v, err := it.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["name"] != "acme" || m["employees"] != float64(120) {
		t.Errorf("value = %#v", v)
	}
}

func TestTextAndRawCodecs(t *testing.T) {
	s := openTestStore(t)

	s.Set("text-key", "hello", 0)
	s.Set("raw-key", []byte{0x89, 0x50, 0x4e, 0x47}, 0)

	it, err := s.Get("text-key")
	if err != nil {
		t.Fatalf("Get text: %v", err)
	}
	if v, _ := it.Value(); v != "hello" {
		t.Errorf("text value = %v", v)
	}

	it, err = s.Get("raw-key")
	if err != nil {
		t.Fatalf("Get raw: %v", err)
	}
	if it.Codec != "raw" || !bytes.Equal(it.Raw, []byte{0x89, 0x50, 0x4e, 0x47}) {
		t.Errorf("raw item = %q %v", it.Codec, it.Raw)
	}
}

type feedSnapshot struct {
	Region string
	Prices map[string]float64
}

func TestGobRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := feedSnapshot{Region: "us-east-1", Prices: map[string]float64{"m5.large": 0.096}}
	if err := s.SetGob("feed", in, 0); err != nil {
		t.Fatalf("SetGob: %v", err)
	}

	var out feedSnapshot
	if err := s.GetGob("feed", &out); err != nil {
		t.Fatalf("GetGob: %v", err)
	}
	if out.Region != "us-east-1" || out.Prices["m5.large"] != 0.096 {
		t.Errorf("out = %+v", out)
	}

	s.Set("plain", "text", 0)
	if err := s.GetGob("plain", &out); err == nil {
		t.Error("GetGob on a text item should fail")
	}
}

func TestExpiryLazyDelete(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	if err := s.Set("ephemeral", "soon gone", time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Get("ephemeral"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := s.Get("ephemeral"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry = %v, want ErrNotFound", err)
	}

	// The expired row is removed on access, not merely hidden.
	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Items != 0 {
		t.Errorf("items = %d after expiry sweep, want 0", st.Items)
	}
}

func TestNoExpiryByDefault(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.Set("durable", "stays", 0)
	s.now = func() time.Time { return base.Add(24 * 365 * time.Hour) }
	if _, err := s.Get("durable"); err != nil {
		t.Errorf("Get with ttl=0 after a year: %v", err)
	}
}

func TestOverwriteReplacesValue(t *testing.T) {
	s := openTestStore(t)

	s.Set("k", "first", 0)
	s.Set("k", "second", 0)

	it, err := s.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v, _ := it.Value(); v != "second" {
		t.Errorf("value = %v, want second", v)
	}
	st, _ := s.Stats()
	if st.Items != 1 {
		t.Errorf("items = %d, want 1", st.Items)
	}
}

func TestDeleteMissing(t *testing.T) {
	s := openTestStore(t)
	if err := s.Delete("absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete = %v, want ErrNotFound", err)
	}
}

func TestEvictionKeepsBudget(t *testing.T) {
	s := openTestStore(t)
	s.maxBytes = 100
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	payload := make([]byte, 40)
	s.Set("a", payload, 0)
	s.Set("b", payload, 0)
	// 80 bytes so far; "a" is the least recently used.
	s.Set("c", payload, 0)

	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest item should have been evicted, Get(a) = %v", err)
	}
	for _, k := range []string{"b", "c"} {
		if _, err := s.Get(k); err != nil {
			t.Errorf("Get(%s) after eviction: %v", k, err)
		}
	}
	st, _ := s.Stats()
	if st.TotalBytes > s.maxBytes {
		t.Errorf("total = %d exceeds budget %d", st.TotalBytes, s.maxBytes)
	}
}

func TestEvictionFollowsAccessOrder(t *testing.T) {
	s := openTestStore(t)
	s.maxBytes = 100
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	payload := make([]byte, 40)
	s.Set("a", payload, 0)
	s.Set("b", payload, 0)
	s.Get("a") // refresh a, making b the LRU entry
	s.Set("c", payload, 0)

	if _, err := s.Get("b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LRU item should have been evicted, Get(b) = %v", err)
	}
	if _, err := s.Get("a"); err != nil {
		t.Errorf("recently read item evicted: %v", err)
	}
}

func TestOversizedItemSurvivesAlone(t *testing.T) {
	s := openTestStore(t)
	s.maxBytes = 50

	s.Set("small", make([]byte, 10), 0)
	s.Set("huge", make([]byte, 200), 0)

	if _, err := s.Get("huge"); err != nil {
		t.Errorf("newest item must survive its own insert: %v", err)
	}
	if _, err := s.Get("small"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other items should be evicted, Get(small) = %v", err)
	}
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	s.Set("a", "1", 0)
	s.Set("b", "2", 0)

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	st, _ := s.Stats()
	if st.Items != 0 || st.TotalBytes != 0 {
		t.Errorf("stats after clear = %+v", st)
	}
}
