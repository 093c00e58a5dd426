// Package browser drives a headless Chromium through Playwright for
// pages that need JavaScript rendering. The driver starts lazily on
// first use; when it is not installed every operation returns an
// unavailable error instead of crashing the server.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/satchelworks/satchel/internal/payload"
)

// DefaultNavTimeout bounds a single page navigation.
const DefaultNavTimeout = 30 * time.Second

// maxPageLinks bounds the link list collected from a page.
const maxPageLinks = 200

// Link is a hyperlink collected from a rendered page.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// PageInfo is the rendered state of a visited page.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Links []Link `json:"links"`
}

// Config adjusts the browser session.
type Config struct {
	Headless   bool
	NavTimeout time.Duration
}

// Session owns one Playwright driver and one Chromium instance,
// started on first use and reused across calls.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewSession returns an unstarted Session. Zero config means
// headless with the default navigation timeout.
func NewSession(cfg Config) *Session {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = DefaultNavTimeout
	}
	return &Session{cfg: cfg}
}

// ensure starts the driver and browser once. Callers hold s.mu.
func (s *Session) ensure() error {
	if s.browser != nil {
		return nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return payload.E("unavailable", "playwright driver not installed (playwright.Install or 'npx playwright install chromium'): %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return payload.E("unavailable", "launching chromium: %v", err)
	}
	s.pw = pw
	s.browser = browser
	return nil
}

// Navigate loads url in a fresh page and returns its rendered title,
// text and links.
func (s *Session) Navigate(ctx context.Context, url string) (*PageInfo, error) {
	page, err := s.newPage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := s.goTo(page, url); err != nil {
		return nil, err
	}

	info := &PageInfo{URL: page.URL()}
	if info.Title, err = page.Title(); err != nil {
		return nil, fmt.Errorf("reading title: %w", err)
	}
	if info.Text, err = page.Locator("body").InnerText(); err != nil {
		return nil, fmt.Errorf("reading page text: %w", err)
	}

	raw, err := page.Evaluate(linkScript)
	if err != nil {
		return nil, fmt.Errorf("collecting links: %w", err)
	}
	info.Links = decodeLinks(raw)
	return info, nil
}

// Screenshot renders url and returns a PNG of the full page.
func (s *Session) Screenshot(ctx context.Context, url string, fullPage bool) ([]byte, error) {
	page, err := s.newPage(ctx)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := s.goTo(page, url); err != nil {
		return nil, err
	}
	img, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}
	return img, nil
}

// Close shuts down the browser and driver. Safe on an unstarted
// session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = err
		}
		s.browser = nil
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.pw = nil
	}
	return firstErr
}

func (s *Session) newPage(ctx context.Context) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(); err != nil {
		return nil, err
	}
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	return page, nil
}

func (s *Session) goTo(page playwright.Page, url string) error {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.cfg.NavTimeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

const linkScript = `Array.from(document.querySelectorAll("a[href]"))
	.slice(0, 200)
	.map(a => ({text: a.innerText.trim(), url: a.href}))`

// decodeLinks converts the Evaluate result, a []any of map[string]any,
// into Links. Malformed entries are skipped.
func decodeLinks(raw any) []Link {
	entries, ok := raw.([]any)
	if !ok {
		return nil
	}
	links := make([]Link, 0, len(entries))
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		url, _ := m["url"].(string)
		if url == "" {
			continue
		}
		text, _ := m["text"].(string)
		links = append(links, Link{Text: text, URL: url})
		if len(links) == maxPageLinks {
			break
		}
	}
	return links
}
