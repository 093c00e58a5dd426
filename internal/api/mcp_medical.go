package api

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satchelworks/satchel/internal/payload"
	"github.com/satchelworks/satchel/internal/pubmed"
)

func mcpFDASearchEvents(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		drug, err := req.RequireString("drug")
		if err != nil {
			return invalidf("drug is required"), nil
		}
		limit := req.GetInt("limit", 5)

		total, reports, err := deps.FDA.SearchEvents(ctx, drug, limit)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"drug":    drug,
			"total":   total,
			"reports": reports,
		})), nil
	}
}

func mcpFDATopReactions(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		drug, err := req.RequireString("drug")
		if err != nil {
			return invalidf("drug is required"), nil
		}
		limit := req.GetInt("limit", 10)

		reactions, err := deps.FDA.TopReactions(ctx, drug, limit)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"drug":      drug,
			"reactions": reactions,
		})), nil
	}
}

func mcpFDADrugLabel(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		brand, err := req.RequireString("brand")
		if err != nil {
			return invalidf("brand is required"), nil
		}

		label, err := deps.FDA.DrugLabel(ctx, brand)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"brand": brand,
			"label": label,
		})), nil
	}
}

func mcpFDAEnforcement(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		product, err := req.RequireString("product")
		if err != nil {
			return invalidf("product is required"), nil
		}
		limit := req.GetInt("limit", 5)

		total, recalls, err := deps.FDA.Enforcement(ctx, product, limit)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"product": product,
			"total":   total,
			"recalls": recalls,
		})), nil
	}
}

func mcpFDADeviceEvents(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		device, err := req.RequireString("device")
		if err != nil {
			return invalidf("device is required"), nil
		}
		limit := req.GetInt("limit", 5)

		total, events, err := deps.FDA.DeviceEvents(ctx, device, limit)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"device": device,
			"total":  total,
			"events": events,
		})), nil
	}
}

func mcpPubMedSearch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return invalidf("query is required"), nil
		}
		retmax := req.GetInt("retmax", 20)

		count, pmids, err := deps.PubMed.Search(ctx, query, retmax)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"query": query,
			"count": count,
			"pmids": pmids,
		})), nil
	}
}

func mcpPubMedSummaries(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pmids := req.GetStringSlice("pmids", nil)

		summaries, err := deps.PubMed.Summaries(ctx, pmids)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"summaries": summaries,
		})), nil
	}
}

func mcpPubMedAbstract(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pmid, err := req.RequireString("pmid")
		if err != nil {
			return invalidf("pmid is required"), nil
		}

		article, err := deps.PubMed.Abstract(ctx, pmid)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"pmid":     article.PMID,
			"title":    article.Title,
			"abstract": article.Abstract,
		})), nil
	}
}

func mcpPMCFullText(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pmcid, err := req.RequireString("pmcid")
		if err != nil {
			return invalidf("pmcid is required"), nil
		}

		ft, err := deps.PubMed.PMCFullText(ctx, pmcid)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"pmcid": ft.PMCID,
			"pages": ft.Pages,
			"text":  ft.Text,
		})), nil
	}
}

func mcpFormatCitation(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pmid, err := req.RequireString("pmid")
		if err != nil {
			return invalidf("pmid is required"), nil
		}
		style := strings.ToLower(req.GetString("style", "apa"))

		summaries, err := deps.PubMed.Summaries(ctx, []string{pmid})
		if err != nil {
			return errResult(err), nil
		}
		if len(summaries) == 0 {
			return mcpError(payload.Err("no_results", "no summary for PMID "+pmid)), nil
		}

		citation, err := pubmed.Format(pubmed.ToCitation(summaries[0]), style)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"pmid":     pmid,
			"style":    style,
			"citation": citation,
		})), nil
	}
}
