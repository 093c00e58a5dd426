package webtool

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/satchelworks/satchel/internal/payload"
)

// Link is a hyperlink found on a fetched page.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Page is the readable reduction of a fetched document.
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Links []Link `json:"links"`
}

// maxPageLinks bounds the link list on link-farm pages.
const maxPageLinks = 200

// Fetch downloads rawurl and strips it down to title, visible text
// and resolved links. Script, style and head content is dropped.
func (c *Client) Fetch(ctx context.Context, rawurl string) (*Page, error) {
	base, err := url.Parse(rawurl)
	if err != nil || base.Scheme != "http" && base.Scheme != "https" {
		return nil, payload.E("invalid_argument", "URL must be http or https, got %q", rawurl)
	}

	doc, err := c.getHTML(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawurl, err)
	}

	page := &Page{URL: rawurl}
	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				if n.Data == "head" {
					page.Title = collapseSpace(textContent(findElement(n, "title")))
				}
				return
			case "a":
				if link, ok := resolveLink(base, n); ok && len(page.Links) < maxPageLinks {
					page.Links = append(page.Links, link)
				}
			case "p", "div", "li", "tr", "br", "h1", "h2", "h3", "h4", "h5", "h6", "article", "section":
				text.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	page.Text = tidyText(text.String())
	return page, nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

func resolveLink(base *url.URL, n *html.Node) (Link, bool) {
	href := attr(n, "href")
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return Link{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return Link{}, false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return Link{}, false
	}
	return Link{Text: collapseSpace(textContent(n)), URL: resolved.String()}, true
}

// tidyText collapses intra-line whitespace and blank-line runs.
func tidyText(s string) string {
	var lines []string
	blank := true
	for _, line := range strings.Split(s, "\n") {
		line = collapseSpace(line)
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
