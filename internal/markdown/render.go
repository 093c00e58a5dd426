package markdown

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render converts Markdown to an HTML fragment. Tables, strikethrough
// and autolinks follow GFM.
func Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPage converts Markdown to a standalone HTML page with a
// minimal readable stylesheet.
func RenderPage(title string, source []byte) ([]byte, error) {
	body, err := Render(source)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, pageHeader, html.EscapeString(title))
	buf.Write(body)
	buf.WriteString(pageFooter)
	return buf.Bytes(), nil
}

const pageHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
pre { background: #f5f5f5; padding: 0.8rem; overflow-x: auto; }
code { font-family: monospace; }
img { max-width: 100%%; }
</style>
</head>
<body>
`

const pageFooter = `</body>
</html>
`

// ExtractLinks parses source and returns every link, image and
// autolink destination in document order.
func ExtractLinks(source []byte) []string {
	doc := md.Parser().Parse(text.NewReader(source))

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			links = append(links, string(v.Destination))
		case *ast.Image:
			links = append(links, string(v.Destination))
		case *ast.AutoLink:
			links = append(links, string(v.URL(source)))
		}
		return ast.WalkContinue, nil
	})
	return links
}
