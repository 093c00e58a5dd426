// Package pubmed wraps the NCBI E-utilities (esearch, esummary,
// efetch) and PMC full-text retrieval. NCBI asks clients to identify
// themselves with tool and email parameters and to stay under 3
// requests per second without an API key; callers should hand in an
// httpx.Client with a limiter configured accordingly.
package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/satchelworks/satchel/internal/httpx"
	"github.com/satchelworks/satchel/internal/payload"
)

// DefaultBaseURL is the public E-utilities endpoint.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// DefaultPMCBaseURL serves PMC article assets.
const DefaultPMCBaseURL = "https://www.ncbi.nlm.nih.gov/pmc/articles"

// Config identifies the caller to NCBI.
type Config struct {
	BaseURL    string
	PMCBaseURL string
	Tool       string
	Email      string
	APIKey     string
}

// Client calls the E-utilities through the shared HTTP client.
type Client struct {
	client  *httpx.Client
	base    string
	pmcBase string
	tool    string
	email   string
	apiKey  string
}

// NewClient returns a Client. Empty URLs select the public endpoints.
func NewClient(hc *httpx.Client, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PMCBaseURL == "" {
		cfg.PMCBaseURL = DefaultPMCBaseURL
	}
	if cfg.Tool == "" {
		cfg.Tool = "satchel"
	}
	return &Client{
		client:  hc,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		pmcBase: strings.TrimRight(cfg.PMCBaseURL, "/"),
		tool:    cfg.Tool,
		email:   cfg.Email,
		apiKey:  cfg.APIKey,
	}
}

// Search runs an esearch query and returns the total hit count plus
// up to retmax PMIDs sorted by relevance.
func (c *Client) Search(ctx context.Context, query string, retmax int) (int, []string, error) {
	if strings.TrimSpace(query) == "" {
		return 0, nil, payload.E("invalid_argument", "query is empty")
	}
	if retmax <= 0 {
		retmax = 20
	}

	values := c.values()
	values.Set("db", "pubmed")
	values.Set("term", query)
	values.Set("retmode", "json")
	values.Set("retmax", strconv.Itoa(retmax))
	values.Set("sort", "relevance")

	var resp struct {
		ESearchResult struct {
			Count  string   `json:"count"`
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := c.client.GetJSON(ctx, c.base+"/esearch.fcgi?"+values.Encode(), &resp); err != nil {
		return 0, nil, fmt.Errorf("esearch: %w", err)
	}

	total, err := strconv.Atoi(resp.ESearchResult.Count)
	if err != nil {
		return 0, nil, fmt.Errorf("esearch count %q: %w", resp.ESearchResult.Count, err)
	}
	return total, resp.ESearchResult.IDList, nil
}

// Summary is a slim esummary record.
type Summary struct {
	PMID    string   `json:"pmid"`
	Title   string   `json:"title"`
	Journal string   `json:"journal"`
	PubDate string   `json:"pub_date"`
	Authors []string `json:"authors"`
	Volume  string   `json:"volume"`
	Issue   string   `json:"issue"`
	Pages   string   `json:"pages"`
	DOI     string   `json:"doi"`
}

// Summaries fetches esummary records for the given PMIDs, returned in
// the order NCBI lists them.
func (c *Client) Summaries(ctx context.Context, pmids []string) ([]Summary, error) {
	if len(pmids) == 0 {
		return nil, payload.E("invalid_argument", "no PMIDs given")
	}

	values := c.values()
	values.Set("db", "pubmed")
	values.Set("id", strings.Join(pmids, ","))
	values.Set("retmode", "json")

	var resp struct {
		Result map[string]any `json:"result"`
	}
	if err := c.client.GetJSON(ctx, c.base+"/esummary.fcgi?"+values.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("esummary: %w", err)
	}

	order, _ := resp.Result["uids"].([]any)
	summaries := make([]Summary, 0, len(order))
	for _, u := range order {
		uid, _ := u.(string)
		rec, ok := resp.Result[uid].(map[string]any)
		if !ok {
			continue
		}
		summaries = append(summaries, decodeSummary(uid, rec))
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("esummary for %s: %w", strings.Join(pmids, ","), httpx.ErrNoResults)
	}
	return summaries, nil
}

func decodeSummary(uid string, rec map[string]any) Summary {
	s := Summary{
		PMID:    uid,
		Title:   str(rec["title"]),
		Journal: str(rec["fulljournalname"]),
		PubDate: str(rec["pubdate"]),
		Volume:  str(rec["volume"]),
		Issue:   str(rec["issue"]),
		Pages:   str(rec["pages"]),
	}
	if authors, ok := rec["authors"].([]any); ok {
		for _, a := range authors {
			if am, ok := a.(map[string]any); ok {
				if name := str(am["name"]); name != "" {
					s.Authors = append(s.Authors, name)
				}
			}
		}
	}
	if ids, ok := rec["articleids"].([]any); ok {
		for _, id := range ids {
			im, ok := id.(map[string]any)
			if !ok {
				continue
			}
			if str(im["idtype"]) == "doi" {
				s.DOI = str(im["value"])
			}
		}
	}
	return s
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Article is an efetch abstract record.
type Article struct {
	PMID     string `json:"pmid"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
}

type efetchSet struct {
	XMLName  xml.Name `xml:"PubmedArticleSet"`
	Articles []struct {
		Citation struct {
			PMID    string `xml:"PMID"`
			Article struct {
				Title    string `xml:"ArticleTitle"`
				Abstract struct {
					Sections []struct {
						Label string `xml:"Label,attr"`
						Text  string `xml:",chardata"`
					} `xml:"AbstractText"`
				} `xml:"Abstract"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}

var pmidRe = regexp.MustCompile(`^\d+$`)

// Abstract fetches the abstract for one PMID via efetch XML.
// Structured abstracts keep their section labels.
func (c *Client) Abstract(ctx context.Context, pmid string) (*Article, error) {
	if !pmidRe.MatchString(pmid) {
		return nil, payload.E("invalid_argument", "PMID must be numeric, got %q", pmid)
	}

	values := c.values()
	values.Set("db", "pubmed")
	values.Set("id", pmid)
	values.Set("retmode", "xml")

	body, err := c.client.Get(ctx, c.base+"/efetch.fcgi?"+values.Encode())
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}

	var set efetchSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("decode efetch XML: %w", err)
	}
	if len(set.Articles) == 0 {
		return nil, fmt.Errorf("abstract for PMID %s: %w", pmid, httpx.ErrNoResults)
	}

	citation := set.Articles[0].Citation
	var parts []string
	for _, sec := range citation.Article.Abstract.Sections {
		text := strings.TrimSpace(sec.Text)
		if text == "" {
			continue
		}
		if sec.Label != "" {
			text = sec.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return &Article{
		PMID:     citation.PMID,
		Title:    citation.Article.Title,
		Abstract: strings.Join(parts, "\n\n"),
	}, nil
}

func (c *Client) values() url.Values {
	values := url.Values{}
	values.Set("tool", c.tool)
	if c.email != "" {
		values.Set("email", c.email)
	}
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}
	return values
}
