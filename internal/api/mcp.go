package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satchelworks/satchel/internal/awsprice"
	"github.com/satchelworks/satchel/internal/browser"
	"github.com/satchelworks/satchel/internal/fda"
	"github.com/satchelworks/satchel/internal/httpx"
	"github.com/satchelworks/satchel/internal/kvcache"
	"github.com/satchelworks/satchel/internal/payload"
	"github.com/satchelworks/satchel/internal/pubmed"
	"github.com/satchelworks/satchel/internal/session"
	"github.com/satchelworks/satchel/internal/taskcache"
	"github.com/satchelworks/satchel/internal/webtool"
)

// Deps holds the services the MCP tools close over. Tasks, Sessions,
// FDA, PubMed and Web must be set; Cache and Browser may be nil, in
// which case their tools answer with an `unavailable` envelope.
// A nil Prices table falls back to the built-in static table; a nil
// Feed disables live price refresh.
type Deps struct {
	Tasks    *taskcache.Store
	Sessions *session.Manager
	Cache    *kvcache.Store
	Prices   *awsprice.Table
	Feed     *awsprice.Feed
	FDA      *fda.Client
	PubMed   *pubmed.Client
	Web      *webtool.Client
	Browser  *browser.Session
	OutDir   string // relative output paths for generated files resolve against this
}

func (d Deps) prices() *awsprice.Table {
	if d.Prices != nil {
		return d.Prices
	}
	return awsprice.DefaultTable()
}

func (d Deps) resolvePath(p string) string {
	if filepath.IsAbs(p) || d.OutDir == "" {
		return p
	}
	return filepath.Join(d.OutDir, p)
}

// NewMCPServer creates an MCP server with all satchel tools and
// resources registered.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"satchel",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("satchel provides research, cloud-pricing, and document-generation tools. Every tool returns a JSON envelope: {\"status\":\"success\",...} on success, {\"status\":\"error\",\"error_type\":...,\"message\":...} on failure."),
		server.WithRecovery(),
	)

	// Task progress cache
	s.AddTool(
		mcp.NewTool("cache_task_progress",
			mcp.WithDescription("Store a task progress record so an interrupted batch run can resume later."),
			mcp.WithString("task_id", mcp.Description("Task identifier"), mcp.Required()),
			mcp.WithString("progress", mcp.Description("Progress record as a JSON object"), mcp.Required()),
			mcp.WithBoolean("overwrite", mcp.Description("Replace an existing record (default false)")),
		),
		mcpCacheTaskProgress(deps),
	)

	s.AddTool(
		mcp.NewTool("get_task_progress",
			mcp.WithDescription("Fetch the cached progress record for a task."),
			mcp.WithString("task_id", mcp.Description("Task identifier"), mcp.Required()),
		),
		mcpGetTaskProgress(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_company_info",
			mcp.WithDescription("Cache one company's research result under a task."),
			mcp.WithString("task_id", mcp.Description("Task identifier"), mcp.Required()),
			mcp.WithString("company", mcp.Description("Company name"), mcp.Required()),
			mcp.WithString("data", mcp.Description("Research result as a JSON object"), mcp.Required()),
		),
		mcpCacheCompanyInfo(deps),
	)

	s.AddTool(
		mcp.NewTool("get_company_info",
			mcp.WithDescription("Fetch a cached company research result."),
			mcp.WithString("task_id", mcp.Description("Task identifier"), mcp.Required()),
			mcp.WithString("company", mcp.Description("Company name"), mcp.Required()),
		),
		mcpGetCompanyInfo(deps),
	)

	// Sessions
	s.AddTool(
		mcp.NewTool("session_start",
			mcp.WithDescription("Start a new conversation session and return its ID."),
			mcp.WithString("user_id", mcp.Description("User identifier"), mcp.Required()),
		),
		mcpSessionStart(deps),
	)

	s.AddTool(
		mcp.NewTool("session_append",
			mcp.WithDescription("Append a conversation turn to a session, optionally recording a discussed topic."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
			mcp.WithString("role", mcp.Description("Speaker role, e.g. user or assistant"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Turn content"), mcp.Required()),
			mcp.WithString("topic", mcp.Description("Optional topic to record in session metadata")),
		),
		mcpSessionAppend(deps),
	)

	s.AddTool(
		mcp.NewTool("session_close",
			mcp.WithDescription("Close a session, fixing its end time."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
		),
		mcpSessionClose(deps),
	)

	s.AddTool(
		mcp.NewTool("session_archive",
			mcp.WithDescription("Move a session file into the archive directory."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
		),
		mcpSessionArchive(deps),
	)

	s.AddTool(
		mcp.NewTool("session_delete",
			mcp.WithDescription("Delete a session file permanently."),
			mcp.WithString("session_id", mcp.Description("Session identifier"), mcp.Required()),
		),
		mcpSessionDelete(deps),
	)

	// Generic cache
	s.AddTool(
		mcp.NewTool("cache_set",
			mcp.WithDescription("Store a value in the generic cache with an optional TTL."),
			mcp.WithString("key", mcp.Description("Cache key"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to store"), mcp.Required()),
			mcp.WithNumber("ttl_seconds", mcp.Description("Time to live in seconds; 0 or absent means no expiry")),
			mcp.WithBoolean("json", mcp.Description("Parse value as JSON before storing (default false, stores text)")),
		),
		mcpCacheSet(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_get",
			mcp.WithDescription("Fetch a value from the generic cache. Expired entries report not_found."),
			mcp.WithString("key", mcp.Description("Cache key"), mcp.Required()),
		),
		mcpCacheGet(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_delete",
			mcp.WithDescription("Remove a value from the generic cache."),
			mcp.WithString("key", mcp.Description("Cache key"), mcp.Required()),
		),
		mcpCacheDelete(deps),
	)

	s.AddTool(
		mcp.NewTool("cache_stats",
			mcp.WithDescription("Report generic cache occupancy: item count, bytes used, byte budget."),
		),
		mcpCacheStats(deps),
	)

	// AWS pricing
	s.AddTool(
		mcp.NewTool("match_ec2_instance",
			mcp.WithDescription("Find the smallest EC2 instance type covering a vCPU and memory requirement."),
			mcp.WithNumber("vcpu", mcp.Description("Required vCPU count"), mcp.Required()),
			mcp.WithNumber("memory_gib", mcp.Description("Required memory in GiB"), mcp.Required()),
		),
		mcpMatchInstance(deps),
	)

	s.AddTool(
		mcp.NewTool("estimate_aws_cost",
			mcp.WithDescription("Estimate combined monthly AWS cost for EC2, EBS, S3 and egress. Zero components are skipped."),
			mcp.WithString("region", mcp.Description("AWS region, e.g. us-east-1"), mcp.Required()),
			mcp.WithString("instance_type", mcp.Description("EC2 instance type, e.g. m5.xlarge")),
			mcp.WithNumber("instance_count", mcp.Description("Number of instances (default 1)")),
			mcp.WithNumber("hours_per_month", mcp.Description("Hours per instance per month (default 730)")),
			mcp.WithString("ebs_volume_type", mcp.Description("EBS volume type, e.g. gp3")),
			mcp.WithNumber("ebs_size_gib", mcp.Description("EBS volume size in GiB")),
			mcp.WithNumber("s3_storage_gib", mcp.Description("S3 storage in GiB")),
			mcp.WithNumber("egress_gib", mcp.Description("Data transfer out in GiB")),
			mcp.WithBoolean("live_prices", mcp.Description("Refresh hourly EC2 rates from the AWS Price List feed; falls back to the built-in table")),
		),
		mcpEstimateCost(deps),
	)

	s.AddTool(
		mcp.NewTool("parse_instance_spec",
			mcp.WithDescription("Extract vCPU and memory requirements from free text like '4 vCPU, 16 GiB'."),
			mcp.WithString("text", mcp.Description("Requirement text"), mcp.Required()),
		),
		mcpParseInstanceSpec(deps),
	)

	// openFDA
	s.AddTool(
		mcp.NewTool("fda_search_events",
			mcp.WithDescription("Search FDA adverse event reports for a drug."),
			mcp.WithString("drug", mcp.Description("Drug name"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum reports to return (default 5)")),
		),
		mcpFDASearchEvents(deps),
	)

	s.AddTool(
		mcp.NewTool("fda_top_reactions",
			mcp.WithDescription("Aggregate the most reported adverse reactions for a drug."),
			mcp.WithString("drug", mcp.Description("Drug name"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum reactions to return (default 10)")),
		),
		mcpFDATopReactions(deps),
	)

	s.AddTool(
		mcp.NewTool("fda_drug_label",
			mcp.WithDescription("Fetch the FDA labeling record for a drug brand name."),
			mcp.WithString("brand", mcp.Description("Brand name"), mcp.Required()),
		),
		mcpFDADrugLabel(deps),
	)

	s.AddTool(
		mcp.NewTool("fda_enforcement",
			mcp.WithDescription("Search FDA enforcement reports (recalls) for a product."),
			mcp.WithString("product", mcp.Description("Product name"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum recalls to return (default 5)")),
		),
		mcpFDAEnforcement(deps),
	)

	s.AddTool(
		mcp.NewTool("fda_device_events",
			mcp.WithDescription("Search FDA device adverse events for a device brand name."),
			mcp.WithString("device", mcp.Description("Device brand name"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum events to return (default 5)")),
		),
		mcpFDADeviceEvents(deps),
	)

	// PubMed / PMC
	s.AddTool(
		mcp.NewTool("pubmed_search",
			mcp.WithDescription("Search PubMed and return matching PMIDs."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("retmax", mcp.Description("Maximum PMIDs to return (default 20)")),
		),
		mcpPubMedSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("pubmed_summaries",
			mcp.WithDescription("Fetch article summaries for a list of PMIDs."),
			mcp.WithArray("pmids", mcp.Description("PubMed IDs"), mcp.Required()),
		),
		mcpPubMedSummaries(deps),
	)

	s.AddTool(
		mcp.NewTool("pubmed_abstract",
			mcp.WithDescription("Fetch the abstract of one PubMed article."),
			mcp.WithString("pmid", mcp.Description("PubMed ID"), mcp.Required()),
		),
		mcpPubMedAbstract(deps),
	)

	s.AddTool(
		mcp.NewTool("pmc_fulltext",
			mcp.WithDescription("Download the PDF of a PubMed Central article and extract its text."),
			mcp.WithString("pmcid", mcp.Description("PMC ID, e.g. PMC7000000"), mcp.Required()),
		),
		mcpPMCFullText(deps),
	)

	s.AddTool(
		mcp.NewTool("format_citation",
			mcp.WithDescription("Format a citation for a PubMed article in APA, MLA, Chicago or Vancouver style."),
			mcp.WithString("pmid", mcp.Description("PubMed ID"), mcp.Required()),
			mcp.WithString("style", mcp.Description("Citation style: apa, mla, chicago, vancouver (default apa)")),
		),
		mcpFormatCitation(deps),
	)

	// Web
	s.AddTool(
		mcp.NewTool("web_search",
			mcp.WithDescription("Search the web and return result titles, URLs and snippets."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("max_results", mcp.Description("Maximum results (default 10)")),
		),
		mcpWebSearch(deps),
	)

	s.AddTool(
		mcp.NewTool("web_fetch",
			mcp.WithDescription("Fetch a web page and return its readable text, title and links."),
			mcp.WithString("url", mcp.Description("Page URL"), mcp.Required()),
		),
		mcpWebFetch(deps),
	)

	// Browser
	s.AddTool(
		mcp.NewTool("browser_navigate",
			mcp.WithDescription("Load a page in a headless browser and return the rendered text, title and links. For pages the plain fetcher cannot read."),
			mcp.WithString("url", mcp.Description("Page URL"), mcp.Required()),
		),
		mcpBrowserNavigate(deps),
	)

	s.AddTool(
		mcp.NewTool("browser_screenshot",
			mcp.WithDescription("Capture a PNG screenshot of a page."),
			mcp.WithString("url", mcp.Description("Page URL"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Output file path"), mcp.Required()),
			mcp.WithBoolean("full_page", mcp.Description("Capture the full scroll height (default false)")),
		),
		mcpBrowserScreenshot(deps),
	)

	// Documents
	s.AddTool(
		mcp.NewTool("markdown_build",
			mcp.WithDescription("Build a Markdown document from a JSON list of blocks (heading, paragraph, bullets, numbered, table, code, quote, image, rule)."),
			mcp.WithString("blocks", mcp.Description("JSON array of block objects"), mcp.Required()),
		),
		mcpMarkdownBuild(deps),
	)

	s.AddTool(
		mcp.NewTool("markdown_render",
			mcp.WithDescription("Render Markdown to HTML. With a title, wraps the result in a full standalone page."),
			mcp.WithString("markdown", mcp.Description("Markdown source"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Optional page title for standalone output")),
		),
		mcpMarkdownRender(deps),
	)

	s.AddTool(
		mcp.NewTool("chart_render",
			mcp.WithDescription("Render a line, bar or pie chart to a PNG file."),
			mcp.WithString("type", mcp.Description("Chart type: line, bar, pie (default line)")),
			mcp.WithString("title", mcp.Description("Chart title")),
			mcp.WithString("series", mcp.Description("JSON array of {name, values} series"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Output PNG path"), mcp.Required()),
			mcp.WithArray("x_labels", mcp.Description("Labels for the X axis")),
			mcp.WithNumber("width", mcp.Description("Canvas width in pixels (default 800)")),
			mcp.WithNumber("height", mcp.Description("Canvas height in pixels (default 400)")),
		),
		mcpChartRender(deps),
	)

	s.AddTool(
		mcp.NewTool("pptx_build",
			mcp.WithDescription("Build a PowerPoint deck from Markdown: the first H1 becomes the title slide, later headings become bullet slides."),
			mcp.WithString("markdown", mcp.Description("Markdown source"), mcp.Required()),
			mcp.WithString("path", mcp.Description("Output .pptx path"), mcp.Required()),
			mcp.WithString("author", mcp.Description("Deck author for document properties")),
		),
		mcpPptxBuild(deps),
	)

	s.AddTool(
		mcp.NewTool("image_resize",
			mcp.WithDescription("Resize an image file. Modes: stretch (default; one zero dimension preserves aspect), fit, fill."),
			mcp.WithString("path", mcp.Description("Source image path"), mcp.Required()),
			mcp.WithString("out_path", mcp.Description("Output path (default: overwrite source)")),
			mcp.WithNumber("width", mcp.Description("Target width in pixels")),
			mcp.WithNumber("height", mcp.Description("Target height in pixels")),
			mcp.WithString("mode", mcp.Description("Resize mode: stretch, fit, fill")),
		),
		mcpImageResize(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"satchel://tasks",
			"Task Progress",
			mcp.WithResourceDescription("Summaries of all cached task progress records"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTasks(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"satchel://cache/stats",
			"Cache Stats",
			mcp.WithResourceDescription("Generic cache occupancy as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCacheStats(deps),
	)

	return s
}

func mcpResourceTasks(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tasks, err := deps.Tasks.ListTasks()
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}

		b, err := json.Marshal(tasks)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tasks: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceCacheStats(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Cache == nil {
			return nil, errors.New("cache store not configured")
		}
		stats, err := deps.Cache.Stats()
		if err != nil {
			return nil, fmt.Errorf("failed to read cache stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// errResult renders err as an error envelope, mapping the package
// sentinels onto the wire taxonomy.
func errResult(err error) *mcp.CallToolResult {
	return mcpError(payload.Err(errType(err), err.Error()))
}

func errType(err error) string {
	switch {
	case errors.Is(err, taskcache.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, kvcache.ErrNotFound):
		return "not_found"
	case errors.Is(err, taskcache.ErrExists):
		return "already_exists"
	case errors.Is(err, session.ErrSessionFull):
		return "session_full"
	case errors.Is(err, session.ErrClosed):
		return "session_closed"
	case errors.Is(err, httpx.ErrNoResults):
		return "no_results"
	case errors.Is(err, httpx.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, httpx.ErrServer):
		return "server_error"
	}
	return payload.TypeOf(err)
}

// invalidf renders an invalid_argument envelope.
func invalidf(format string, args ...any) *mcp.CallToolResult {
	return mcpError(payload.Err("invalid_argument", fmt.Sprintf(format, args...)))
}

// unavailable reports a tool whose backing service is not configured.
func unavailable(what string) *mcp.CallToolResult {
	return mcpError(payload.Err("unavailable", what+" not configured"))
}
