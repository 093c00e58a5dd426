// Package chart renders line, bar and pie charts to PNG for research
// reports. Rendering is deterministic: the same spec always produces
// the same bytes, so cached charts can be compared by hash.
package chart

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/satchelworks/satchel/internal/payload"
)

// Default canvas size.
const (
	DefaultWidth  = 800
	DefaultHeight = 400
)

// Series is one named line on a line chart, or the single value set
// of a bar or pie chart.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Spec describes a chart to render.
type Spec struct {
	Type    string   `json:"type"`
	Title   string   `json:"title"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	XLabels []string `json:"x_labels"`
	Series  []Series `json:"series"`
}

// Render draws the chart described by spec and returns PNG bytes.
func Render(spec Spec) ([]byte, error) {
	if len(spec.Series) == 0 || len(spec.Series[0].Values) == 0 {
		return nil, payload.E("invalid_argument", "chart needs at least one series with values")
	}
	if spec.Width <= 0 {
		spec.Width = DefaultWidth
	}
	if spec.Height <= 0 {
		spec.Height = DefaultHeight
	}

	var buf bytes.Buffer
	var err error
	switch spec.Type {
	case "line", "":
		err = renderLine(spec, &buf)
	case "bar":
		err = renderBar(spec, &buf)
	case "pie":
		err = renderPie(spec, &buf)
	default:
		return nil, payload.E("invalid_argument", "unknown chart type %q (want line, bar or pie)", spec.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s chart: %w", spec.Type, err)
	}
	return buf.Bytes(), nil
}

// RenderFile renders spec and writes the PNG to path atomically.
func RenderFile(spec Spec, path string) error {
	img, err := Render(spec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-chart-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close chart file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("move chart into place: %w", err)
	}
	return nil
}

func renderLine(spec Spec, buf *bytes.Buffer) error {
	series := make([]chart.Series, 0, len(spec.Series))
	for _, s := range spec.Series {
		if len(s.Values) < 2 {
			return payload.E("invalid_argument", "line series %q needs at least 2 points", s.Name)
		}
		xs := make([]float64, len(s.Values))
		for i := range xs {
			xs[i] = float64(i)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
		})
	}

	graph := chart.Chart{
		Title:  spec.Title,
		Width:  spec.Width,
		Height: spec.Height,
		Series: series,
	}
	if len(spec.XLabels) > 0 {
		ticks := make([]chart.Tick, len(spec.XLabels))
		for i, label := range spec.XLabels {
			ticks[i] = chart.Tick{Value: float64(i), Label: label}
		}
		graph.XAxis = chart.XAxis{Ticks: ticks}
	}
	return graph.Render(chart.PNG, buf)
}

func renderBar(spec Spec, buf *bytes.Buffer) error {
	graph := chart.BarChart{
		Title:  spec.Title,
		Width:  spec.Width,
		Height: spec.Height,
		Bars:   values(spec.Series[0], spec.XLabels),
	}
	return graph.Render(chart.PNG, buf)
}

func renderPie(spec Spec, buf *bytes.Buffer) error {
	graph := chart.PieChart{
		Title:  spec.Title,
		Width:  spec.Width,
		Height: spec.Height,
		Values: values(spec.Series[0], spec.XLabels),
	}
	return graph.Render(chart.PNG, buf)
}

// values pairs a series with its labels, synthesizing 1-based index
// labels when none are given.
func values(s Series, labels []string) []chart.Value {
	vals := make([]chart.Value, len(s.Values))
	for i, v := range s.Values {
		label := strconv.Itoa(i + 1)
		if i < len(labels) {
			label = labels[i]
		}
		vals[i] = chart.Value{Label: label, Value: v}
	}
	return vals
}
