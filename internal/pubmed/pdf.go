package pubmed

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/satchelworks/satchel/internal/payload"
)

var pmcidRe = regexp.MustCompile(`^PMC\d+$`)

// FullText is the extracted text of a PMC article PDF.
type FullText struct {
	PMCID string `json:"pmcid"`
	Pages int    `json:"pages"`
	Text  string `json:"text"`
}

// PMCFullText downloads the PDF rendition of a PMC article and
// extracts its plain text. Accepts "PMC123456" or a bare numeric ID.
func (c *Client) PMCFullText(ctx context.Context, pmcid string) (*FullText, error) {
	id := normalizePMCID(pmcid)
	if id == "" {
		return nil, payload.E("invalid_argument", "invalid PMC ID %q", pmcid)
	}

	data, err := c.client.Get(ctx, c.pmcBase+"/"+id+"/pdf/")
	if err != nil {
		return nil, fmt.Errorf("fetching PMC PDF: %w", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, payload.E("no_results", "PMC returned no PDF rendition for %s", id)
	}

	text, pages, err := extractPDFText(data)
	if err != nil {
		return nil, err
	}
	return &FullText{PMCID: id, Pages: pages, Text: text}, nil
}

func extractPDFText(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("parsing PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("extracting PDF text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", 0, fmt.Errorf("reading PDF text: %w", err)
	}
	return buf.String(), reader.NumPage(), nil
}

func normalizePMCID(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if !strings.HasPrefix(id, "PMC") {
		id = "PMC" + id
	}
	if !pmcidRe.MatchString(id) {
		return ""
	}
	return id
}
