package pptx

import (
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/satchelworks/satchel/internal/payload"
)

// FromHTML builds a deck from an HTML document. The first h1 becomes
// the title slide with the following paragraph as subtitle; every
// later h1-h3 starts a bullet slide fed by the paragraphs and list
// items under it. An img with an inline data: URL becomes its own
// image slide and closes the slide being built.
func FromHTML(r io.Reader, author string) (*Deck, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, payload.E("invalid_argument", "parsing HTML: %v", err)
	}

	deck := New("", author)
	var current *slide
	flush := func() {
		if current != nil {
			deck.slides = append(deck.slides, *current)
			current = nil
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.H1, atom.H2, atom.H3:
				title := textContent(n)
				if n.DataAtom == atom.H1 && deck.title == "" {
					deck.title = title
					flush()
					deck.AddTitleSlide(title, "")
					return
				}
				flush()
				current = &slide{kind: kindBullets, title: title}
				return
			case atom.P:
				line := textContent(n)
				if line != "" {
					switch {
					case current != nil:
						current.bullets = append(current.bullets, line)
					case len(deck.slides) > 0 && deck.slides[len(deck.slides)-1].kind == kindTitle:
						last := &deck.slides[len(deck.slides)-1]
						if last.subtitle == "" {
							last.subtitle = line
						}
					}
				}
				// Keep walking: the paragraph may wrap an image.
			case atom.Li:
				if current != nil {
					if line := textContent(n); line != "" {
						current.bullets = append(current.bullets, line)
					}
				}
				return
			case atom.Img:
				data := dataURIBytes(attrVal(n, "src"))
				if data == nil {
					return
				}
				flush()
				// Non-image payloads are skipped, not fatal.
				_ = deck.AddImageSlide(attrVal(n, "alt"), data)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	flush()

	if len(deck.slides) == 0 {
		return nil, payload.E("invalid_argument", "html has no headings to build slides from")
	}
	if deck.title == "" {
		deck.title = deck.slides[0].title
	}
	return deck, nil
}

// textContent flattens the text below n, collapsing whitespace.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteByte(' ')
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// dataURIBytes decodes a base64 data: URL, or returns nil for
// anything else. Remote images are not fetched here.
func dataURIBytes(src string) []byte {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return nil
	}
	meta, b64, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil
	}
	return data
}

func attrVal(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
