package markdown

import (
	"strings"
	"testing"
)

func TestBuilderDocument(t *testing.T) {
	got := NewBuilder().
		Heading(1, "Acme Corp Research").
		Paragraph("Summary of findings.").
		Heading(2, "Key Points").
		BulletList("Revenue up 12%", "Two new facilities").
		String()

	want := `# Acme Corp Research

Summary of findings.

## Key Points

- Revenue up 12%
- Two new facilities
`
	if got != want {
		t.Errorf("document =\n%s\nwant\n%s", got, want)
	}
}

func TestBuilderHeadingClamp(t *testing.T) {
	if got := NewBuilder().Heading(0, "a").String(); got != "# a\n" {
		t.Errorf("level 0 = %q", got)
	}
	if got := NewBuilder().Heading(9, "a").String(); got != "###### a\n" {
		t.Errorf("level 9 = %q", got)
	}
}

func TestBuilderTableAlignment(t *testing.T) {
	got := NewBuilder().Table(
		[]string{"Service", "Cost"},
		[][]string{
			{"EC2", "70.08"},
			{"S3 Standard", "0.23"},
		},
	).String()

	want := `| Service     | Cost  |
| ----------- | ----- |
| EC2         | 70.08 |
| S3 Standard | 0.23  |
`
	if got != want {
		t.Errorf("table =\n%s\nwant\n%s", got, want)
	}
}

func TestBuilderTableRaggedRows(t *testing.T) {
	got := NewBuilder().Table(
		[]string{"A", "B"},
		[][]string{
			{"1"},
			{"2", "3", "dropped"},
		},
	).String()

	if !strings.Contains(got, "| 1 |   |") {
		t.Errorf("short row not padded:\n%s", got)
	}
	if strings.Contains(got, "dropped") {
		t.Errorf("extra cell not truncated:\n%s", got)
	}
}

func TestBuilderCodeBlock(t *testing.T) {
	got := NewBuilder().CodeBlock("go", "fmt.Println(\"hi\")\n").String()
	want := "```go\nfmt.Println(\"hi\")\n```\n"
	if got != want {
		t.Errorf("code block = %q, want %q", got, want)
	}
}

func TestBuilderNumberedListAndQuote(t *testing.T) {
	got := NewBuilder().
		NumberedList("first", "second").
		Quote("line one\nline two").
		String()
	want := "1. first\n2. second\n\n> line one\n> line two\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuilderEmpty(t *testing.T) {
	if got := NewBuilder().String(); got != "" {
		t.Errorf("empty builder = %q", got)
	}
	if got := NewBuilder().Paragraph("  ").BulletList().String(); got != "" {
		t.Errorf("blank blocks = %q", got)
	}
}

func TestInlineHelpers(t *testing.T) {
	if got := Link("docs", "https://example.com"); got != "[docs](https://example.com)" {
		t.Errorf("Link = %q", got)
	}
	if got := Bold("x"); got != "**x**" {
		t.Errorf("Bold = %q", got)
	}
}

func TestBuilderDeterministic(t *testing.T) {
	build := func() string {
		return NewBuilder().
			Heading(1, "Report").
			Table([]string{"K", "V"}, [][]string{{"a", "1"}, {"b", "2"}}).
			Rule().
			Image("chart", "chart.png").
			String()
	}
	first := build()
	for i := 0; i < 5; i++ {
		if got := build(); got != first {
			t.Fatalf("output changed between runs:\n%s\nvs\n%s", first, got)
		}
	}
}
