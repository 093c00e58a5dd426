package pptx

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/satchelworks/satchel/internal/payload"
)

var md = goldmark.New()

// FromMarkdown builds a deck from a Markdown outline. The first H1
// becomes the title slide, with the paragraph after it as subtitle.
// Every later heading starts a bullet slide; list items and
// paragraphs under it become bullets.
func FromMarkdown(source []byte, author string) (*Deck, error) {
	doc := md.Parser().Parse(text.NewReader(source))

	deck := New("", author)
	var current *slide
	flush := func() {
		if current != nil {
			deck.slides = append(deck.slides, *current)
			current = nil
		}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			title := nodeText(n, source)
			if n.Level == 1 && deck.title == "" {
				deck.title = title
				flush()
				deck.AddTitleSlide(title, "")
				continue
			}
			flush()
			current = &slide{kind: kindBullets, title: title}
		case *ast.Paragraph:
			line := nodeText(n, source)
			if line == "" {
				continue
			}
			switch {
			case current != nil:
				current.bullets = append(current.bullets, line)
			case len(deck.slides) > 0 && deck.slides[len(deck.slides)-1].kind == kindTitle:
				last := &deck.slides[len(deck.slides)-1]
				if last.subtitle == "" {
					last.subtitle = line
				}
			}
		case *ast.List:
			if current == nil {
				continue
			}
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				if line := nodeText(item, source); line != "" {
					current.bullets = append(current.bullets, line)
				}
			}
		}
	}
	flush()

	if len(deck.slides) == 0 {
		return nil, payload.E("invalid_argument", "markdown has no headings to build slides from")
	}
	if deck.title == "" {
		deck.title = deck.slides[0].title
	}
	return deck, nil
}

// nodeText flattens a node's inline text.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(node ast.Node) {
		if t, ok := node.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
