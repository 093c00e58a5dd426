// Package pptx writes PowerPoint decks for research deliverables. It
// emits the OOXML package format directly through archive/zip, so the
// output opens in PowerPoint, Keynote and LibreOffice without any
// Office dependency at build time.
package pptx

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/satchelworks/satchel/internal/imaging"
	"github.com/satchelworks/satchel/internal/payload"
)

type slideKind int

const (
	kindTitle slideKind = iota
	kindBullets
	kindImage
)

type slide struct {
	kind     slideKind
	title    string
	subtitle string
	bullets  []string
	image    []byte
	imageExt string
	imageW   int
	imageH   int
}

// Deck is a presentation under construction. The zero value is not
// usable; call New.
type Deck struct {
	title   string
	author  string
	created time.Time
	slides  []slide
}

// New returns an empty deck with document properties set.
func New(title, author string) *Deck {
	return &Deck{title: title, author: author}
}

// SetCreated pins the document timestamps, making the output
// byte-reproducible. Unset decks stamp the write time.
func (d *Deck) SetCreated(t time.Time) {
	d.created = t
}

// SlideCount reports how many slides the deck holds.
func (d *Deck) SlideCount() int {
	return len(d.slides)
}

// AddTitleSlide appends a centered title slide.
func (d *Deck) AddTitleSlide(title, subtitle string) *Deck {
	d.slides = append(d.slides, slide{kind: kindTitle, title: title, subtitle: subtitle})
	return d
}

// AddBulletSlide appends a slide with a heading and bullet list.
func (d *Deck) AddBulletSlide(title string, bullets []string) *Deck {
	d.slides = append(d.slides, slide{kind: kindBullets, title: title, bullets: bullets})
	return d
}

// AddImageSlide appends a slide with a heading and a centered image.
// PNG and JPEG data is accepted.
func (d *Deck) AddImageSlide(title string, image []byte) error {
	w, h, format, err := imaging.Info(image)
	if err != nil {
		return err
	}
	if format != "png" && format != "jpeg" {
		return payload.E("invalid_argument", "slide images must be PNG or JPEG, got %s", format)
	}
	d.slides = append(d.slides, slide{
		kind:     kindImage,
		title:    title,
		image:    image,
		imageExt: format,
		imageW:   w,
		imageH:   h,
	})
	return nil
}

// WriteTo writes the deck as a .pptx package.
func (d *Deck) WriteTo(w io.Writer) (int64, error) {
	created := d.created
	if created.IsZero() {
		created = time.Now().UTC()
	}

	counter := &countingWriter{w: w}
	zw := zip.NewWriter(counter)

	type part struct {
		name string
		data []byte
	}
	parts := []part{
		{"[Content_Types].xml", []byte(contentTypesXML(d.slides))},
		{"_rels/.rels", []byte(rootRelsXML())},
		{"docProps/core.xml", []byte(corePropsXML(d.title, d.author, created.Format(time.RFC3339)))},
		{"docProps/app.xml", []byte(appPropsXML(len(d.slides)))},
		{"ppt/presentation.xml", []byte(presentationXML(d.slides))},
		{"ppt/_rels/presentation.xml.rels", []byte(presentationRelsXML(d.slides))},
		{"ppt/slideMasters/slideMaster1.xml", []byte(slideMasterXML())},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", []byte(slideMasterRelsXML())},
		{"ppt/slideLayouts/slideLayout1.xml", []byte(slideLayoutXML())},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", []byte(slideLayoutRelsXML())},
		{"ppt/theme/theme1.xml", []byte(themeXML())},
	}

	imageNum := 0
	for i, s := range d.slides {
		var media string
		if s.kind == kindImage {
			imageNum++
			media = fmt.Sprintf("../media/image%d.%s", imageNum, s.imageExt)
		}
		parts = append(parts,
			part{fmt.Sprintf("ppt/slides/slide%d.xml", i+1), []byte(renderSlide(s))},
			part{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), []byte(slideRelsXML(media))},
		)
		if s.kind == kindImage {
			parts = append(parts, part{fmt.Sprintf("ppt/media/image%d.%s", imageNum, s.imageExt), s.image})
		}
	}

	for _, p := range parts {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate})
		if err != nil {
			return counter.n, fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := f.Write(p.data); err != nil {
			return counter.n, fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return counter.n, fmt.Errorf("finalize package: %w", err)
	}
	return counter.n, nil
}

// WriteFile writes the deck to path atomically.
func (d *Deck) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create deck dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-deck-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := d.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close deck file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("move deck into place: %w", err)
	}
	return nil
}

func renderSlide(s slide) string {
	var shapes []string
	switch s.kind {
	case kindTitle:
		shapes = append(shapes, textShape(2, "Title", titleBoxX, centerTitleY, titleBoxCX, titleBoxCY,
			[]para{{text: s.title, size: sizeTitle, bold: true, center: true}}))
		if s.subtitle != "" {
			shapes = append(shapes, textShape(3, "Subtitle", titleBoxX, subtitleY, titleBoxCX, subtitleCY,
				[]para{{text: s.subtitle, size: sizeSubtitle, center: true}}))
		}
	case kindBullets:
		shapes = append(shapes, textShape(2, "Title", titleBoxX, titleBoxY, titleBoxCX, titleBoxCY,
			[]para{{text: s.title, size: sizeTitle, bold: true}}))
		paras := make([]para, len(s.bullets))
		for i, b := range s.bullets {
			paras[i] = para{text: b, size: sizeBody, bullet: true}
		}
		if len(paras) > 0 {
			shapes = append(shapes, textShape(3, "Body", titleBoxX, bodyBoxY, titleBoxCX, bodyBoxCY, paras))
		}
	case kindImage:
		shapes = append(shapes, textShape(2, "Title", titleBoxX, titleBoxY, titleBoxCX, titleBoxCY,
			[]para{{text: s.title, size: sizeTitle, bold: true}}))
		x, y, cx, cy := fitImage(s.imageW, s.imageH)
		shapes = append(shapes, pictureShape(3, "rId2", x, y, cx, cy))
	}
	return slideXML(shapes)
}

// fitImage scales pixel dimensions into the image box, centered.
func fitImage(pxW, pxH int) (x, y, cx, cy int) {
	cx = pxW * emuPerPixel
	cy = pxH * emuPerPixel
	scale := 1.0
	if cx > 0 && float64(imageBoxMaxCX)/float64(cx) < scale {
		scale = float64(imageBoxMaxCX) / float64(cx)
	}
	if cy > 0 && float64(imageBoxMaxCY)/float64(cy) < scale {
		scale = float64(imageBoxMaxCY) / float64(cy)
	}
	cx = int(float64(cx) * scale)
	cy = int(float64(cy) * scale)
	x = imageBoxX + (imageBoxMaxCX-cx)/2
	y = imageBoxY + (imageBoxMaxCY-cy)/2
	return x, y, cx, cy
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
