package pubmed

import (
	"fmt"
	"strings"

	"github.com/satchelworks/satchel/internal/payload"
)

// Author is a structured author name. Given holds initials or given
// names as PubMed reports them ("JA", "John A").
type Author struct {
	Family string `json:"family"`
	Given  string `json:"given"`
}

// Citation carries the fields the formatters need.
type Citation struct {
	Authors []Author `json:"authors"`
	Title   string   `json:"title"`
	Journal string   `json:"journal"`
	Year    string   `json:"year"`
	Volume  string   `json:"volume"`
	Issue   string   `json:"issue"`
	Pages   string   `json:"pages"`
	DOI     string   `json:"doi"`
}

// ToCitation converts an esummary record into a Citation. PubMed
// author names arrive as "Family Initials"; the year is the leading
// four digits of the pubdate.
func ToCitation(s Summary) Citation {
	c := Citation{
		Title:   strings.TrimSuffix(strings.TrimSpace(s.Title), "."),
		Journal: s.Journal,
		Volume:  s.Volume,
		Issue:   s.Issue,
		Pages:   s.Pages,
		DOI:     s.DOI,
	}
	if len(s.PubDate) >= 4 {
		c.Year = s.PubDate[:4]
	}
	for _, name := range s.Authors {
		parts := strings.Fields(name)
		if len(parts) == 0 {
			continue
		}
		a := Author{Family: parts[0]}
		if len(parts) > 1 {
			a.Given = strings.Join(parts[1:], " ")
		}
		c.Authors = append(c.Authors, a)
	}
	return c
}

// Format renders the citation in the named style: apa, mla, chicago
// or vancouver.
func Format(c Citation, style string) (string, error) {
	switch strings.ToLower(style) {
	case "apa":
		return c.APA(), nil
	case "mla":
		return c.MLA(), nil
	case "chicago":
		return c.Chicago(), nil
	case "vancouver":
		return c.Vancouver(), nil
	}
	return "", payload.E("invalid_argument", "unknown citation style %q (want apa, mla, chicago or vancouver)", style)
}

// APA renders APA 7th edition: inverted names with spaced initials,
// ampersand before the final author, and for 21+ authors the first 19
// followed by an ellipsis and the last.
func (c Citation) APA() string {
	var authors string
	names := make([]string, len(c.Authors))
	for i, a := range c.Authors {
		names[i] = invertedInitials(a)
	}
	switch n := len(names); {
	case n == 0:
	case n == 1:
		authors = names[0]
	case n <= 20:
		authors = strings.Join(names[:n-1], ", ") + ", & " + names[n-1]
	default:
		authors = strings.Join(names[:19], ", ") + ", . . . " + names[n-1]
	}

	var b strings.Builder
	if authors != "" {
		b.WriteString(authors)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "(%s). %s.", orND(c.Year), c.Title)
	if c.Journal != "" {
		fmt.Fprintf(&b, " %s", c.Journal)
		if c.Volume != "" {
			fmt.Fprintf(&b, ", %s", c.Volume)
			if c.Issue != "" {
				fmt.Fprintf(&b, "(%s)", c.Issue)
			}
		}
		if c.Pages != "" {
			fmt.Fprintf(&b, ", %s", c.Pages)
		}
		b.WriteByte('.')
	}
	if c.DOI != "" {
		fmt.Fprintf(&b, " https://doi.org/%s", c.DOI)
	}
	return b.String()
}

// MLA renders MLA 9th edition: only the first author inverted, "et
// al." from three authors on, title quoted.
func (c Citation) MLA() string {
	var authors string
	switch n := len(c.Authors); {
	case n == 0:
	case n == 1:
		authors = dotted(invertedInitials(c.Authors[0])) + " "
	case n == 2:
		authors = invertedInitials(c.Authors[0]) + ", and " + dotted(forwardInitials(c.Authors[1])) + " "
	default:
		authors = invertedInitials(c.Authors[0]) + ", et al. "
	}

	var b strings.Builder
	b.WriteString(authors)
	fmt.Fprintf(&b, "\"%s.\"", c.Title)
	if c.Journal != "" {
		fmt.Fprintf(&b, " %s", c.Journal)
		if c.Volume != "" {
			fmt.Fprintf(&b, ", vol. %s", c.Volume)
		}
		if c.Issue != "" {
			fmt.Fprintf(&b, ", no. %s", c.Issue)
		}
		if c.Year != "" {
			fmt.Fprintf(&b, ", %s", c.Year)
		}
		if c.Pages != "" {
			fmt.Fprintf(&b, ", pp. %s", c.Pages)
		}
		b.WriteByte('.')
	}
	return b.String()
}

// Chicago renders a Chicago bibliography entry: first author
// inverted, the rest forward, "and" before the last; eleven or more
// authors list the first seven then et al.
func (c Citation) Chicago() string {
	var authors string
	names := make([]string, len(c.Authors))
	for i, a := range c.Authors {
		if i == 0 {
			names[i] = invertedInitials(a)
		} else {
			names[i] = forwardInitials(a)
		}
	}
	switch n := len(names); {
	case n == 0:
	case n == 1:
		authors = dotted(names[0])
	case n <= 10:
		authors = strings.Join(names[:n-1], ", ") + ", and " + dotted(names[n-1])
	default:
		authors = strings.Join(names[:7], ", ") + ", et al."
	}

	var b strings.Builder
	if authors != "" {
		b.WriteString(authors)
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "\"%s.\"", c.Title)
	if c.Journal != "" {
		fmt.Fprintf(&b, " %s", c.Journal)
		if c.Volume != "" {
			fmt.Fprintf(&b, " %s", c.Volume)
		}
		if c.Issue != "" {
			fmt.Fprintf(&b, ", no. %s", c.Issue)
		}
		if c.Year != "" {
			fmt.Fprintf(&b, " (%s)", c.Year)
		}
		if c.Pages != "" {
			fmt.Fprintf(&b, ": %s", c.Pages)
		}
		b.WriteByte('.')
	}
	return b.String()
}

// Vancouver renders the ICMJE style: condensed initials without
// punctuation, first six authors then et al.
func (c Citation) Vancouver() string {
	names := make([]string, 0, len(c.Authors))
	for i, a := range c.Authors {
		if i == 6 {
			names = append(names, "et al")
			break
		}
		names = append(names, vancouverName(a))
	}

	var b strings.Builder
	if len(names) > 0 {
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "%s.", c.Title)
	if c.Journal != "" {
		fmt.Fprintf(&b, " %s.", c.Journal)
	}
	if c.Year != "" {
		fmt.Fprintf(&b, " %s", c.Year)
		if c.Volume != "" {
			fmt.Fprintf(&b, ";%s", c.Volume)
			if c.Issue != "" {
				fmt.Fprintf(&b, "(%s)", c.Issue)
			}
			if c.Pages != "" {
				fmt.Fprintf(&b, ":%s", c.Pages)
			}
		}
		b.WriteByte('.')
	}
	if c.DOI != "" {
		fmt.Fprintf(&b, " doi:%s", c.DOI)
	}
	return b.String()
}

// invertedInitials renders "Smith, J. A."
func invertedInitials(a Author) string {
	init := spacedInitials(a.Given)
	if init == "" {
		return a.Family
	}
	return a.Family + ", " + init
}

// forwardInitials renders "J. A. Smith".
func forwardInitials(a Author) string {
	init := spacedInitials(a.Given)
	if init == "" {
		return a.Family
	}
	return init + " " + a.Family
}

// vancouverName renders "Smith JA".
func vancouverName(a Author) string {
	var initials strings.Builder
	for _, word := range strings.Fields(a.Given) {
		for _, r := range word {
			if r == '.' {
				continue
			}
			initials.WriteRune(r)
			// A run of capitals is already initials; a full given
			// name contributes only its first letter.
			if len(word) > 1 && word != strings.ToUpper(word) {
				break
			}
		}
	}
	if initials.Len() == 0 {
		return a.Family
	}
	return a.Family + " " + initials.String()
}

// dotted appends a terminal period unless the name already ends with
// an initial's period.
func dotted(name string) string {
	if name == "" || strings.HasSuffix(name, ".") {
		return name
	}
	return name + "."
}

// orND substitutes the APA no-date marker.
func orND(year string) string {
	if year == "" {
		return "n.d."
	}
	return year
}

// spacedInitials turns "JA", "J.A." or "John Andrew" into "J. A."
func spacedInitials(given string) string {
	var out []string
	for _, word := range strings.Fields(given) {
		word = strings.ReplaceAll(word, ".", "")
		if word == "" {
			continue
		}
		if word == strings.ToUpper(word) {
			for _, r := range word {
				out = append(out, string(r)+".")
			}
		} else {
			out = append(out, string([]rune(word)[0])+".")
		}
	}
	return strings.Join(out, " ")
}
