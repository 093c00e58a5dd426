package awsprice

import (
	"context"
	"fmt"
	"strconv"

	"github.com/satchelworks/satchel/internal/httpx"
	"github.com/satchelworks/satchel/internal/payload"
)

// DefaultPricingBase is the public AWS Price List endpoint. The bulk
// offer documents need no credentials or request signing.
const DefaultPricingBase = "https://pricing.us-east-1.amazonaws.com"

const regionIndexPath = "/offers/v1.0/aws/AmazonEC2/current/region_index.json"

// Feed fetches current on-demand rates from the AWS Price List bulk
// API. Offer documents are large; callers should refresh rarely and
// cache the result.
type Feed struct {
	client *httpx.Client
	base   string
}

// NewFeed returns a Feed. An empty baseURL selects the public
// endpoint; tests point it at a fixture server.
func NewFeed(client *httpx.Client, baseURL string) *Feed {
	if baseURL == "" {
		baseURL = DefaultPricingBase
	}
	return &Feed{client: client, base: baseURL}
}

type regionIndex struct {
	Regions map[string]struct {
		RegionCode        string `json:"regionCode"`
		CurrentVersionURL string `json:"currentVersionUrl"`
	} `json:"regions"`
}

type offerDoc struct {
	Products map[string]struct {
		Attributes struct {
			InstanceType    string `json:"instanceType"`
			OperatingSystem string `json:"operatingSystem"`
			Tenancy         string `json:"tenancy"`
			PreInstalledSW  string `json:"preInstalledSw"`
			CapacityStatus  string `json:"capacitystatus"`
		} `json:"attributes"`
	} `json:"products"`
	Terms struct {
		OnDemand map[string]map[string]struct {
			PriceDimensions map[string]struct {
				Unit         string            `json:"unit"`
				PricePerUnit map[string]string `json:"pricePerUnit"`
			} `json:"priceDimensions"`
		} `json:"OnDemand"`
	} `json:"terms"`
}

// OfferURL resolves the current offer document URL for region.
func (f *Feed) OfferURL(ctx context.Context, region string) (string, error) {
	var index regionIndex
	if err := f.client.GetJSON(ctx, f.base+regionIndexPath, &index); err != nil {
		return "", fmt.Errorf("fetching region index: %w", err)
	}
	entry, ok := index.Regions[region]
	if !ok {
		return "", payload.E("no_results", "region %q not present in the price list index", region)
	}
	return f.base + entry.CurrentVersionURL, nil
}

// HourlyPrices fetches the offer document for region and extracts the
// Linux, shared-tenancy on-demand hourly USD rate per instance type.
// When a type appears under several SKUs the lowest rate wins, which
// keeps the result independent of map iteration order.
func (f *Feed) HourlyPrices(ctx context.Context, region string) (map[string]float64, error) {
	url, err := f.OfferURL(ctx, region)
	if err != nil {
		return nil, err
	}

	var doc offerDoc
	if err := f.client.GetJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("fetching offer document: %w", err)
	}

	prices := make(map[string]float64)
	for sku, product := range doc.Products {
		attr := product.Attributes
		if attr.InstanceType == "" || attr.OperatingSystem != "Linux" ||
			attr.Tenancy != "Shared" || attr.PreInstalledSW != "NA" ||
			attr.CapacityStatus != "Used" {
			continue
		}
		terms, ok := doc.Terms.OnDemand[sku]
		if !ok {
			continue
		}
		for _, term := range terms {
			for _, dim := range term.PriceDimensions {
				if dim.Unit != "Hrs" {
					continue
				}
				usd, err := strconv.ParseFloat(dim.PricePerUnit["USD"], 64)
				if err != nil || usd <= 0 {
					continue
				}
				if cur, ok := prices[attr.InstanceType]; !ok || usd < cur {
					prices[attr.InstanceType] = usd
				}
			}
		}
	}
	if len(prices) == 0 {
		return nil, payload.E("no_results", "offer document for %s held no on-demand Linux rates", region)
	}
	return prices, nil
}
