package api

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satchelworks/satchel/internal/payload"
)

func mcpWebSearch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return invalidf("query is required"), nil
		}
		max := req.GetInt("max_results", 0)

		results, err := deps.Web.Search(ctx, query, max)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"query":   query,
			"results": results,
		})), nil
	}
}

func mcpWebFetch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawurl, err := req.RequireString("url")
		if err != nil {
			return invalidf("url is required"), nil
		}

		page, err := deps.Web.Fetch(ctx, rawurl)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"url":   page.URL,
			"title": page.Title,
			"text":  page.Text,
			"links": page.Links,
		})), nil
	}
}

func mcpBrowserNavigate(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Browser == nil {
			return unavailable("browser"), nil
		}

		rawurl, err := req.RequireString("url")
		if err != nil {
			return invalidf("url is required"), nil
		}

		info, err := deps.Browser.Navigate(ctx, rawurl)
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"url":   info.URL,
			"title": info.Title,
			"text":  info.Text,
			"links": info.Links,
		})), nil
	}
}

func mcpBrowserScreenshot(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Browser == nil {
			return unavailable("browser"), nil
		}

		rawurl, err := req.RequireString("url")
		if err != nil {
			return invalidf("url is required"), nil
		}
		path, err := req.RequireString("path")
		if err != nil {
			return invalidf("path is required"), nil
		}
		fullPage := req.GetBool("full_page", false)

		png, err := deps.Browser.Screenshot(ctx, rawurl, fullPage)
		if err != nil {
			return errResult(err), nil
		}

		out := deps.resolvePath(path)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return errResult(err), nil
		}
		if err := os.WriteFile(out, png, 0o644); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"url":   rawurl,
			"path":  out,
			"bytes": len(png),
		})), nil
	}
}
