package pptx

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/satchelworks/satchel/internal/payload"
)

func TestFromHTML(t *testing.T) {
	src := `<html><head><title>ignored</title></head><body>
<h1>Quarterly Research</h1>
<p>Prepared by the research desk.</p>
<h2>Findings</h2>
<p>Revenue up 12%</p>
<ul><li>Churn <b>flat</b></li><li>Costs down</li></ul>
<h2>Next Steps</h2>
<ol><li>Expand pilots</li></ol>
</body></html>`

	deck, err := FromHTML(strings.NewReader(src), "analyst")
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if deck.title != "Quarterly Research" {
		t.Errorf("title = %q", deck.title)
	}
	if deck.SlideCount() != 3 {
		t.Fatalf("slides = %d, want 3", deck.SlideCount())
	}

	title := deck.slides[0]
	if title.kind != kindTitle || title.subtitle != "Prepared by the research desk." {
		t.Errorf("title slide = %+v", title)
	}

	findings := deck.slides[1]
	if findings.title != "Findings" {
		t.Errorf("slide 2 title = %q", findings.title)
	}
	wantBullets := []string{"Revenue up 12%", "Churn flat", "Costs down"}
	if len(findings.bullets) != len(wantBullets) {
		t.Fatalf("bullets = %v", findings.bullets)
	}
	for i, want := range wantBullets {
		if findings.bullets[i] != want {
			t.Errorf("bullet %d = %q, want %q", i, findings.bullets[i], want)
		}
	}

	if deck.slides[2].title != "Next Steps" || deck.slides[2].bullets[0] != "Expand pilots" {
		t.Errorf("slide 3 = %+v", deck.slides[2])
	}
}

func TestFromHTMLImageSlide(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 40, 20))
	src := `<h1>Report</h1>
<h2>Charts</h2>
<p>intro</p>
<p><img src="` + uri + `" alt="Cost Chart"></p>`

	deck, err := FromHTML(strings.NewReader(src), "a")
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	if deck.SlideCount() != 3 {
		t.Fatalf("slides = %d, want 3", deck.SlideCount())
	}

	charts := deck.slides[1]
	if charts.kind != kindBullets || len(charts.bullets) != 1 || charts.bullets[0] != "intro" {
		t.Errorf("charts slide = %+v", charts)
	}

	img := deck.slides[2]
	if img.kind != kindImage || img.title != "Cost Chart" {
		t.Errorf("image slide = %+v", img)
	}
	if img.imageExt != "png" || img.imageW != 40 || img.imageH != 20 {
		t.Errorf("image meta = %s %dx%d", img.imageExt, img.imageW, img.imageH)
	}
}

func TestFromHTMLSkipsRemoteImages(t *testing.T) {
	src := `<h1>Report</h1><h2>Charts</h2><img src="https://example.com/a.png" alt="remote">`
	deck, err := FromHTML(strings.NewReader(src), "a")
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	for _, s := range deck.slides {
		if s.kind == kindImage {
			t.Errorf("remote image became a slide: %+v", s)
		}
	}
}

func TestFromHTMLSkipsScriptText(t *testing.T) {
	src := `<h1>Report</h1><h2>Body</h2><script>var x = "leak";</script><p>real</p>`
	deck, err := FromHTML(strings.NewReader(src), "a")
	if err != nil {
		t.Fatalf("FromHTML: %v", err)
	}
	body := deck.slides[1]
	if len(body.bullets) != 1 || body.bullets[0] != "real" {
		t.Errorf("bullets = %v", body.bullets)
	}
}

func TestFromHTMLNoHeadings(t *testing.T) {
	_, err := FromHTML(strings.NewReader("<p>just text</p>"), "a")
	if err == nil {
		t.Fatal("want error")
	}
	if got := payload.TypeOf(err); got != "invalid_argument" {
		t.Errorf("error type = %q", got)
	}
}
