package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satchelworks/satchel/internal/chart"
	"github.com/satchelworks/satchel/internal/imaging"
	"github.com/satchelworks/satchel/internal/markdown"
	"github.com/satchelworks/satchel/internal/payload"
	"github.com/satchelworks/satchel/internal/pptx"
)

// mdBlock is one block of the markdown_build wire format.
type mdBlock struct {
	Type    string     `json:"type"`
	Level   int        `json:"level,omitempty"`
	Text    string     `json:"text,omitempty"`
	Items   []string   `json:"items,omitempty"`
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
	Lang    string     `json:"lang,omitempty"`
	Code    string     `json:"code,omitempty"`
	Alt     string     `json:"alt,omitempty"`
	URL     string     `json:"url,omitempty"`
}

func mcpMarkdownBuild(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		blocksJSON, err := req.RequireString("blocks")
		if err != nil {
			return invalidf("blocks is required"), nil
		}

		var blocks []mdBlock
		if err := json.Unmarshal([]byte(blocksJSON), &blocks); err != nil {
			return invalidf("blocks is not a JSON array: %v", err), nil
		}
		if len(blocks) == 0 {
			return invalidf("blocks is empty"), nil
		}

		b := markdown.NewBuilder()
		for i, blk := range blocks {
			switch blk.Type {
			case "heading":
				level := blk.Level
				if level == 0 {
					level = 1
				}
				b.Heading(level, blk.Text)
			case "paragraph":
				b.Paragraph(blk.Text)
			case "bullets":
				b.BulletList(blk.Items...)
			case "numbered":
				b.NumberedList(blk.Items...)
			case "table":
				b.Table(blk.Headers, blk.Rows)
			case "code":
				b.CodeBlock(blk.Lang, blk.Code)
			case "quote":
				b.Quote(blk.Text)
			case "image":
				b.Image(blk.Alt, blk.URL)
			case "rule":
				b.Rule()
			default:
				return invalidf("block %d has unknown type %q", i, blk.Type), nil
			}
		}

		return mcpText(payload.OK(map[string]any{
			"markdown": b.String(),
		})), nil
	}
}

func mcpMarkdownRender(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("markdown")
		if err != nil {
			return invalidf("markdown is required"), nil
		}
		title := req.GetString("title", "")

		var out []byte
		if title != "" {
			out, err = markdown.RenderPage(title, []byte(source))
		} else {
			out, err = markdown.Render([]byte(source))
		}
		if err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"html": string(out),
		})), nil
	}
}

func mcpChartRender(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		seriesJSON, err := req.RequireString("series")
		if err != nil {
			return invalidf("series is required"), nil
		}
		path, err := req.RequireString("path")
		if err != nil {
			return invalidf("path is required"), nil
		}

		var series []chart.Series
		if err := json.Unmarshal([]byte(seriesJSON), &series); err != nil {
			return invalidf("series is not a JSON array of {name, values}: %v", err), nil
		}

		spec := chart.Spec{
			Type:    req.GetString("type", ""),
			Title:   req.GetString("title", ""),
			Width:   req.GetInt("width", 0),
			Height:  req.GetInt("height", 0),
			XLabels: req.GetStringSlice("x_labels", nil),
			Series:  series,
		}

		out := deps.resolvePath(path)
		if err := chart.RenderFile(spec, out); err != nil {
			return errResult(err), nil
		}

		kind := spec.Type
		if kind == "" {
			kind = "line"
		}
		width, height := spec.Width, spec.Height
		if width <= 0 {
			width = chart.DefaultWidth
		}
		if height <= 0 {
			height = chart.DefaultHeight
		}

		return mcpText(payload.OK(map[string]any{
			"path":   out,
			"type":   kind,
			"width":  width,
			"height": height,
		})), nil
	}
}

func mcpPptxBuild(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("markdown")
		if err != nil {
			return invalidf("markdown is required"), nil
		}
		path, err := req.RequireString("path")
		if err != nil {
			return invalidf("path is required"), nil
		}
		author := req.GetString("author", "")

		deck, err := pptx.FromMarkdown([]byte(source), author)
		if err != nil {
			return errResult(err), nil
		}

		out := deps.resolvePath(path)
		if err := deck.WriteFile(out); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"path":   out,
			"slides": deck.SlideCount(),
		})), nil
	}
}

func mcpImageResize(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, err := req.RequireString("path")
		if err != nil {
			return invalidf("path is required"), nil
		}
		outPath := req.GetString("out_path", src)
		width := req.GetInt("width", 0)
		height := req.GetInt("height", 0)
		mode := req.GetString("mode", "")

		data, err := os.ReadFile(deps.resolvePath(src))
		if err != nil {
			return errResult(err), nil
		}

		resized, format, err := imaging.Resize(data, width, height, mode)
		if err != nil {
			return errResult(err), nil
		}
		outW, outH, _, err := imaging.Info(resized)
		if err != nil {
			return errResult(err), nil
		}

		out := deps.resolvePath(outPath)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return errResult(err), nil
		}
		if err := os.WriteFile(out, resized, 0o644); err != nil {
			return errResult(err), nil
		}

		return mcpText(payload.OK(map[string]any{
			"path":   out,
			"width":  outW,
			"height": outH,
			"format": format,
		})), nil
	}
}
