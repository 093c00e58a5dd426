package api

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satchelworks/satchel/internal/awsprice"
	"github.com/satchelworks/satchel/internal/payload"
)

// livePricesTTL bounds how long a fetched offer snapshot is reused.
const livePricesTTL = 24 * time.Hour

// livePrices returns the current on-demand hourly rates for region.
// Fetched maps are cached so repeated estimates do not re-pull the
// offer document.
func (d Deps) livePrices(ctx context.Context, region string) (map[string]float64, error) {
	if d.Feed == nil {
		return nil, payload.E("unavailable", "price feed is not configured")
	}
	key := "awsprice:hourly:" + region
	if d.Cache != nil {
		var cached map[string]float64
		if err := d.Cache.GetGob(key, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}
	prices, err := d.Feed.HourlyPrices(ctx, region)
	if err != nil {
		return nil, err
	}
	if d.Cache != nil {
		// Cache write is best effort.
		d.Cache.SetGob(key, prices, livePricesTTL)
	}
	return prices, nil
}

func mcpMatchInstance(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		vcpu := req.GetInt("vcpu", 0)
		memGiB := req.GetFloat("memory_gib", 0)

		m, err := deps.prices().Match(vcpu, memGiB)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"instance_type": m.InstanceType,
			"vcpu":          m.VCPU,
			"memory_gib":    m.MemoryGiB,
			"hourly_usd":    m.HourlyUSD,
			"confidence":    m.Confidence,
		})), nil
	}
}

func mcpEstimateCost(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		region, err := req.RequireString("region")
		if err != nil {
			return invalidf("region is required"), nil
		}

		cr := awsprice.CostRequest{
			Region:        region,
			InstanceType:  req.GetString("instance_type", ""),
			InstanceCount: req.GetInt("instance_count", 0),
			HoursPerMonth: req.GetFloat("hours_per_month", 0),
			EBSVolumeType: req.GetString("ebs_volume_type", ""),
			EBSSizeGiB:    req.GetFloat("ebs_size_gib", 0),
			S3StorageGiB:  req.GetFloat("s3_storage_gib", 0),
			EgressGiB:     req.GetFloat("egress_gib", 0),
		}

		table := deps.prices()
		source := "static"
		if req.GetBool("live_prices", false) {
			if prices, err := deps.livePrices(ctx, region); err == nil {
				table = table.WithPrices(prices)
				source = "live"
			}
		}

		est, err := table.EstimateMonthlyCost(cr)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"region":      est.Region,
			"components":  est.Components,
			"monthly_usd": est.MonthlyUSD,
			"prices":      source,
		})), nil
	}
}

func mcpParseInstanceSpec(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return invalidf("text is required"), nil
		}

		vcpu, memGiB, err := awsprice.ParseInstanceSpec(text)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"vcpu":       vcpu,
			"memory_gib": memGiB,
		})), nil
	}
}
