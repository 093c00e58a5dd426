// Package research drives batch company research. A Runner works
// through a roster of company names, searching the web for each one,
// caching a per-company record and checkpointing progress in the task
// cache so an interrupted run resumes where it stopped.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/satchelworks/satchel/internal/payload"
	"github.com/satchelworks/satchel/internal/taskcache"
	"github.com/satchelworks/satchel/internal/webtool"
)

// DefaultWorkers bounds intra-batch parallelism.
const DefaultWorkers = 4

// DefaultBatchSize is how many companies are processed between
// progress checkpoints.
const DefaultBatchSize = 10

// DefaultSources is how many search hits are kept per company.
const DefaultSources = 3

// maxSummaryRunes caps the cached summary text.
const maxSummaryRunes = 600

// Searcher finds candidate sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]webtool.Result, error)
}

// Fetcher retrieves a page for summarization.
type Fetcher interface {
	Fetch(ctx context.Context, rawurl string) (*webtool.Page, error)
}

// Runner processes company rosters against the task cache. Tasks,
// Searcher and Fetcher must be set; zero tuning fields select the
// package defaults.
type Runner struct {
	Tasks     *taskcache.Store
	Searcher  Searcher
	Fetcher   Fetcher
	Workers   int
	BatchSize int
	Sources   int
	Logger    *slog.Logger
}

// Report sums up one Process run. Processed counts companies cached by
// this run; Skipped counts companies already cached when it started.
type Report struct {
	TaskID    string   `json:"task_id"`
	Total     int      `json:"total_companies"`
	Processed int      `json:"processed_companies"`
	Skipped   int      `json:"skipped_companies"`
	Failed    []string `json:"failed_companies,omitempty"`
}

// Status is a progress snapshot with a completion fraction.
type Status struct {
	TaskID     string   `json:"task_id"`
	Total      int      `json:"total_companies"`
	Processed  int      `json:"processed_companies"`
	Failed     []string `json:"failed_companies,omitempty"`
	Batch      int      `json:"current_batch"`
	StartTime  string   `json:"start_time,omitempty"`
	Completion float64  `json:"completion"`
}

// Process researches every company in the roster under taskID.
// Companies with a cached record are skipped, so rerunning with the
// same roster resumes an interrupted task. Failed companies are
// recorded in the progress file but stay uncached; the next run
// retries them. Progress is checkpointed after every batch, and
// cancellation is honored between batches.
func (r *Runner) Process(ctx context.Context, taskID string, companies []string) (Report, error) {
	rep := Report{TaskID: taskID}

	var pending []string
	for _, name := range companies {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		rep.Total++
		if r.Tasks.HasCompany(taskID, name) {
			rep.Skipped++
			continue
		}
		pending = append(pending, name)
	}

	startTime := time.Now().UTC().Format(time.RFC3339)
	if prev, err := r.Tasks.GetProgress(taskID); err == nil {
		if s, ok := prev["start_time"].(string); ok && s != "" {
			startTime = s
		}
	}
	if err := r.checkpoint(taskID, rep, startTime, 0); err != nil {
		return rep, err
	}

	r.log().Info("research task started",
		"task_id", taskID,
		"total", rep.Total,
		"cached", rep.Skipped,
		"pending", len(pending))

	var mu sync.Mutex
	for batch := 1; len(pending) > 0; batch++ {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		n := r.batchSize()
		if n > len(pending) {
			n = len(pending)
		}
		names := pending[:n]
		pending = pending[n:]

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers())
		for _, name := range names {
			g.Go(func() error {
				record, err := r.researchOne(gCtx, taskID, name)
				if err != nil {
					if gCtx.Err() != nil {
						return gCtx.Err()
					}
					r.log().Warn("company research failed", "task_id", taskID, "company", name, "error", err)
					mu.Lock()
					rep.Failed = append(rep.Failed, name)
					mu.Unlock()
					return nil
				}
				if err := r.Tasks.PutCompany(taskID, name, record); err != nil {
					return fmt.Errorf("caching %s: %w", name, err)
				}
				mu.Lock()
				rep.Processed++
				mu.Unlock()
				return nil
			})
		}
		err := g.Wait()
		if cpErr := r.checkpoint(taskID, rep, startTime, batch); err == nil {
			err = cpErr
		}
		if err != nil {
			return rep, err
		}
	}

	sort.Strings(rep.Failed)
	r.log().Info("research task finished",
		"task_id", taskID,
		"processed", rep.Processed,
		"failed", len(rep.Failed))
	return rep, nil
}

// Status reads the progress record for taskID. A missing or zero
// total yields a zero completion.
func (r *Runner) Status(taskID string) (Status, error) {
	record, err := r.Tasks.GetProgress(taskID)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		TaskID:    taskID,
		Total:     numField(record, "total_companies"),
		Processed: numField(record, "processed_companies"),
		Batch:     numField(record, "current_batch"),
	}
	if s, ok := record["start_time"].(string); ok {
		st.StartTime = s
	}
	if failed, ok := record["failed_companies"].([]any); ok {
		for _, f := range failed {
			if s, ok := f.(string); ok {
				st.Failed = append(st.Failed, s)
			}
		}
	}
	if st.Total > 0 {
		st.Completion = float64(st.Processed) / float64(st.Total)
	}
	return st, nil
}

// researchOne builds the cached record for a single company: search,
// keep the top source URLs, summarize the best page. A page that fails
// to fetch falls back to the search snippet.
func (r *Runner) researchOne(ctx context.Context, taskID, name string) (map[string]any, error) {
	query := name + " company overview"
	results, err := r.Searcher.Search(ctx, query, r.sources())
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return nil, payload.E("no_results", "no search results for %q", name)
	}

	sources := make([]string, len(results))
	for i, res := range results {
		sources[i] = res.URL
	}

	summary := results[0].Snippet
	if page, err := r.Fetcher.Fetch(ctx, results[0].URL); err == nil {
		summary = excerpt(page.Text)
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	} else {
		r.log().Debug("page fetch failed, keeping snippet", "company", name, "url", results[0].URL, "error", err)
	}

	return map[string]any{
		"name":    name,
		"query":   query,
		"sources": sources,
		"summary": summary,
	}, nil
}

func (r *Runner) checkpoint(taskID string, rep Report, startTime string, batch int) error {
	failed := append([]string{}, rep.Failed...)
	sort.Strings(failed)
	record := map[string]any{
		"task_id":             taskID,
		"total_companies":     rep.Total,
		"processed_companies": rep.Skipped + rep.Processed,
		"failed_companies":    failed,
		"current_batch":       batch,
		"start_time":          startTime,
	}
	if err := r.Tasks.PutProgress(taskID, record, true); err != nil {
		return fmt.Errorf("updating progress for %s: %w", taskID, err)
	}
	return nil
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return DefaultWorkers
}

func (r *Runner) batchSize() int {
	if r.BatchSize > 0 {
		return r.BatchSize
	}
	return DefaultBatchSize
}

func (r *Runner) sources() int {
	if r.Sources > 0 {
		return r.Sources
	}
	return DefaultSources
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// excerpt collapses whitespace and truncates to maxSummaryRunes on a
// word boundary.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxSummaryRunes {
		return s
	}
	cut := string(runes[:maxSummaryRunes])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// numField reads an int-ish progress value, tolerating the float64
// that JSON decoding produces.
func numField(record map[string]any, key string) int {
	switch v := record[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
