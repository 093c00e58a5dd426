// Package webtool provides web search and page fetching for research
// agents. Search scrapes the DuckDuckGo HTML endpoint, which needs no
// API key; Fetch pulls a page and reduces it to title, text and
// links.
package webtool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/satchelworks/satchel/internal/httpx"
	"github.com/satchelworks/satchel/internal/payload"
)

// DefaultSearchURL is the DuckDuckGo HTML (no-JS) endpoint.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// DefaultMaxBytes caps how much of a response body is read.
const DefaultMaxBytes = 2 << 20

// DefaultMaxResults caps a search result list.
const DefaultMaxResults = 10

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Config adjusts the endpoints and read limits.
type Config struct {
	SearchURL string
	MaxBytes  int64
}

// Client runs searches and fetches through the shared HTTP client.
type Client struct {
	client    *httpx.Client
	searchURL string
	maxBytes  int64
}

// NewClient returns a Client. Zero config fields select defaults.
func NewClient(hc *httpx.Client, cfg Config) *Client {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Client{client: hc, searchURL: cfg.SearchURL, maxBytes: cfg.MaxBytes}
}

// Search queries DuckDuckGo and returns up to max results. A query
// with no hits returns an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string, max int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, payload.E("invalid_argument", "query is empty")
	}
	if max <= 0 {
		max = DefaultMaxResults
	}

	doc, err := c.getHTML(ctx, c.searchURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return parseResults(doc, max), nil
}

// parseResults walks the DuckDuckGo result markup: each hit is an
// anchor with class result__a, followed by a result__snippet node.
func parseResults(doc *html.Node, max int) []Result {
	results := make([]Result, 0, max)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) > max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			results = append(results, Result{
				Title: collapseSpace(textContent(n)),
				URL:   unwrapRedirect(attr(n, "href")),
			})
		}
		if n.Type == html.ElementNode && hasClass(n, "result__snippet") && len(results) > 0 {
			if last := &results[len(results)-1]; last.Snippet == "" {
				last.Snippet = collapseSpace(textContent(n))
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	if len(results) > max {
		results = results[:max]
	}
	return results
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect wrapper to
// the destination URL. Non-redirect hrefs pass through unchanged.
func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if !strings.HasSuffix(u.Path, "/l/") && u.Path != "/l" {
		return href
	}
	if dest := u.Query().Get("uddg"); dest != "" {
		return dest
	}
	return href
}

func (c *Client) getHTML(ctx context.Context, rawurl string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, name := range strings.Fields(attr(n, "class")) {
		if name == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
