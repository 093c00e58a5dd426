// Package markdown builds report documents programmatically and
// renders them to HTML. Builder output is deterministic so generated
// reports diff cleanly between runs.
package markdown

import (
	"fmt"
	"strings"
)

// Builder assembles a Markdown document block by block. Methods
// chain; String returns the document.
type Builder struct {
	blocks []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Heading adds a heading. Levels clamp to 1 through 6.
func (b *Builder) Heading(level int, text string) *Builder {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return b.add(strings.Repeat("#", level) + " " + strings.TrimSpace(text))
}

// Paragraph adds a paragraph.
func (b *Builder) Paragraph(text string) *Builder {
	text = strings.TrimSpace(text)
	if text == "" {
		return b
	}
	return b.add(text)
}

// BulletList adds an unordered list.
func (b *Builder) BulletList(items ...string) *Builder {
	if len(items) == 0 {
		return b
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + strings.TrimSpace(item)
	}
	return b.add(strings.Join(lines, "\n"))
}

// NumberedList adds an ordered list.
func (b *Builder) NumberedList(items ...string) *Builder {
	if len(items) == 0 {
		return b
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, strings.TrimSpace(item))
	}
	return b.add(strings.Join(lines, "\n"))
}

// Table adds a pipe table with columns padded to equal width. Short
// rows are padded with empty cells, long rows truncated.
func (b *Builder) Table(headers []string, rows [][]string) *Builder {
	if len(headers) == 0 {
		return b
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var lines []string
	lines = append(lines, tableRow(headers, widths))
	sep := make([]string, len(headers))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	lines = append(lines, tableRow(sep, widths))
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		lines = append(lines, tableRow(cells, widths))
	}
	return b.add(strings.Join(lines, "\n"))
}

func tableRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, cell := range cells {
		padded[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
	}
	return "| " + strings.Join(padded, " | ") + " |"
}

// CodeBlock adds a fenced code block.
func (b *Builder) CodeBlock(lang, code string) *Builder {
	return b.add("```" + lang + "\n" + strings.TrimRight(code, "\n") + "\n```")
}

// Quote adds a block quote.
func (b *Builder) Quote(text string) *Builder {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return b.add(strings.Join(lines, "\n"))
}

// Image adds an image block.
func (b *Builder) Image(alt, url string) *Builder {
	return b.add(fmt.Sprintf("![%s](%s)", alt, url))
}

// Rule adds a horizontal rule.
func (b *Builder) Rule() *Builder {
	return b.add("---")
}

// Link formats an inline link for use inside paragraphs and cells.
func Link(text, url string) string {
	return fmt.Sprintf("[%s](%s)", text, url)
}

// Bold formats inline bold text.
func Bold(text string) string {
	return "**" + text + "**"
}

// String returns the document with blocks separated by blank lines
// and a trailing newline.
func (b *Builder) String() string {
	if len(b.blocks) == 0 {
		return ""
	}
	return strings.Join(b.blocks, "\n\n") + "\n"
}

func (b *Builder) add(block string) *Builder {
	b.blocks = append(b.blocks, block)
	return b
}
