package awsprice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/satchelworks/satchel/internal/httpx"
	"github.com/satchelworks/satchel/internal/payload"
)

const offerFixture = `{
  "products": {
    "SKU1": {"attributes": {"instanceType": "m5.large", "operatingSystem": "Linux", "tenancy": "Shared", "preInstalledSw": "NA", "capacitystatus": "Used"}},
    "SKU2": {"attributes": {"instanceType": "m5.large", "operatingSystem": "Windows", "tenancy": "Shared", "preInstalledSw": "NA", "capacitystatus": "Used"}},
    "SKU3": {"attributes": {"instanceType": "c5.xlarge", "operatingSystem": "Linux", "tenancy": "Shared", "preInstalledSw": "NA", "capacitystatus": "Used"}},
    "SKU4": {"attributes": {"instanceType": "m5.large", "operatingSystem": "Linux", "tenancy": "Shared", "preInstalledSw": "NA", "capacitystatus": "Used"}}
  },
  "terms": {
    "OnDemand": {
      "SKU1": {"SKU1.JRTCKXETXF": {"priceDimensions": {"SKU1.JRTCKXETXF.6YS6EN2CT7": {"unit": "Hrs", "pricePerUnit": {"USD": "0.0960000000"}}}}},
      "SKU2": {"SKU2.JRTCKXETXF": {"priceDimensions": {"SKU2.JRTCKXETXF.6YS6EN2CT7": {"unit": "Hrs", "pricePerUnit": {"USD": "0.1880000000"}}}}},
      "SKU3": {"SKU3.JRTCKXETXF": {"priceDimensions": {"SKU3.JRTCKXETXF.6YS6EN2CT7": {"unit": "Hrs", "pricePerUnit": {"USD": "0.1700000000"}}}}},
      "SKU4": {"SKU4.JRTCKXETXF": {"priceDimensions": {"SKU4.JRTCKXETXF.6YS6EN2CT7": {"unit": "Hrs", "pricePerUnit": {"USD": "0.1100000000"}}}}}
    }
  }
}`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/offers/v1.0/aws/AmazonEC2/current/region_index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"regions": {"us-east-1": {"regionCode": "us-east-1", "currentVersionUrl": "/offers/v1.0/aws/AmazonEC2/20260801/us-east-1/index.json"}}}`))
	})
	mux.HandleFunc("/offers/v1.0/aws/AmazonEC2/20260801/us-east-1/index.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(offerFixture))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func feedClient() *httpx.Client {
	return httpx.New(httpx.Config{Retry: httpx.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}})
}

func TestFeedHourlyPrices(t *testing.T) {
	srv := newFeedServer(t)
	feed := NewFeed(feedClient(), srv.URL)

	prices, err := feed.HourlyPrices(context.Background(), "us-east-1")
	if err != nil {
		t.Fatalf("HourlyPrices: %v", err)
	}
	// SKU2 is Windows and must be filtered; SKU4 duplicates m5.large
	// at a higher rate and must lose to SKU1.
	if got := prices["m5.large"]; got != 0.096 {
		t.Errorf("m5.large = %v, want 0.096", got)
	}
	if got := prices["c5.xlarge"]; got != 0.17 {
		t.Errorf("c5.xlarge = %v, want 0.17", got)
	}
	if len(prices) != 2 {
		t.Errorf("prices = %v, want 2 entries", prices)
	}
}

func TestFeedUnknownRegion(t *testing.T) {
	srv := newFeedServer(t)
	feed := NewFeed(feedClient(), srv.URL)

	_, err := feed.OfferURL(context.Background(), "moon-north-1")
	if payload.TypeOf(err) != "no_results" {
		t.Errorf("error type = %q, want no_results (%v)", payload.TypeOf(err), err)
	}
}
