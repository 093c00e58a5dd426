// Package taskcache persists task progress and per-company research
// results as JSON files under <root>/<agent>/. The layout is part of
// the external contract: progress lives at <task_id>_progress.json,
// company records under companies/<task_id>/<sanitized_name>.json.
//
// Writes go through a temp file and rename so readers never observe a
// partial document, and each agent namespace is serialized by an
// in-process mutex. Cross-process writers still race last-write-wins.
package taskcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const cacheVersion = "1.0"

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// Root is the cache directory shared by all agent namespaces.
type Root struct {
	dir string

	mu     sync.Mutex
	stores map[string]*Store
	now    func() time.Time
}

// NewRoot returns a Root over dir. The directory is created on first
// write, not here.
func NewRoot(dir string) *Root {
	return &Root{
		dir:    dir,
		stores: make(map[string]*Store),
		now:    time.Now,
	}
}

// Agent returns the store for one agent namespace, creating it on
// first use. The name is sanitized the same way company names are.
func (r *Root) Agent(name string) *Store {
	key := SanitizeName(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s
	}
	s := &Store{dir: filepath.Join(r.dir, key), now: r.now}
	r.stores[key] = s
	return s
}

// Store holds one agent's task progress and company records.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore returns a store rooted directly at dir, bypassing the
// agent namespace layer. Used by tests and the batch driver.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the namespace directory.
func (s *Store) Dir() string { return s.dir }

// PutProgress writes the progress record for taskID. When overwrite is
// false and a record already exists the call fails with ErrExists and
// the original file is left untouched.
func (s *Store) PutProgress(taskID string, data map[string]any, overwrite bool) error {
	if err := validateID(taskID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.progressPath(taskID)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("progress for task %s: %w", taskID, ErrExists)
		}
	}

	record := make(map[string]any, len(data)+2)
	for k, v := range data {
		record[k] = v
	}
	record["task_id"] = taskID
	record["_metadata"] = map[string]any{
		"last_updated":  s.now().UTC().Format(time.RFC3339),
		"cache_version": cacheVersion,
	}
	return writeJSONAtomic(path, record)
}

// GetProgress reads the progress record for taskID.
func (s *Store) GetProgress(taskID string) (map[string]any, error) {
	if err := validateID(taskID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readJSON(s.progressPath(taskID), fmt.Sprintf("progress for task %s", taskID))
}

// TaskSummary is a condensed view of one progress record.
type TaskSummary struct {
	TaskID      string `json:"task_id"`
	Total       int    `json:"total_companies"`
	Processed   int    `json:"processed_companies"`
	Failed      int    `json:"failed_companies"`
	LastUpdated string `json:"last_updated,omitempty"`
}

// ListTasks scans every progress record in the namespace. Records that
// fail to parse are skipped.
func (s *Store) ListTasks() ([]TaskSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*_progress.json"))
	if err != nil {
		return nil, fmt.Errorf("scan progress files: %w", err)
	}
	sort.Strings(matches)

	summaries := make([]TaskSummary, 0, len(matches))
	for _, path := range matches {
		record, err := readJSON(path, "progress")
		if err != nil {
			continue
		}
		sum := TaskSummary{
			TaskID:    stringField(record, "task_id"),
			Total:     intField(record, "total_companies"),
			Processed: intField(record, "processed_companies"),
		}
		if failed, ok := record["failed_companies"].([]any); ok {
			sum.Failed = len(failed)
		}
		if meta, ok := record["_metadata"].(map[string]any); ok {
			sum.LastUpdated = stringField(meta, "last_updated")
		}
		if sum.TaskID == "" {
			base := filepath.Base(path)
			sum.TaskID = strings.TrimSuffix(base, "_progress.json")
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// PutCompany caches one company's research result for taskID,
// overwriting any previous record for the same company.
func (s *Store) PutCompany(taskID, company string, data map[string]any) error {
	if err := validateID(taskID); err != nil {
		return err
	}
	if strings.TrimSpace(company) == "" {
		return errors.New("company name is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record := make(map[string]any, len(data)+1)
	for k, v := range data {
		record[k] = v
	}
	record["_metadata"] = map[string]any{
		"task_id":      taskID,
		"company_name": company,
		"last_updated": s.now().UTC().Format(time.RFC3339),
	}
	return writeJSONAtomic(s.companyPath(taskID, company), record)
}

// GetCompany reads a cached company record.
func (s *Store) GetCompany(taskID, company string) (map[string]any, error) {
	if err := validateID(taskID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readJSON(s.companyPath(taskID, company), fmt.Sprintf("company %s in task %s", company, taskID))
}

// HasCompany reports whether a company record exists for taskID.
func (s *Store) HasCompany(taskID, company string) bool {
	if validateID(taskID) != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := os.Stat(s.companyPath(taskID, company))
	return err == nil
}

// ListCompanies returns the original names of every cached company for
// taskID, sorted. Names come from record metadata, falling back to the
// sanitized filename.
func (s *Store) ListCompanies(taskID string) ([]string, error) {
	if err := validateID(taskID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, "companies", taskID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan companies for task %s: %w", taskID, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		record, err := readJSON(filepath.Join(dir, entry.Name()), "company")
		if err == nil {
			if meta, ok := record["_metadata"].(map[string]any); ok {
				if orig := stringField(meta, "company_name"); orig != "" {
					name = orig
				}
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) progressPath(taskID string) string {
	return filepath.Join(s.dir, taskID+"_progress.json")
}

func (s *Store) companyPath(taskID, company string) string {
	return filepath.Join(s.dir, "companies", taskID, SanitizeName(company)+".json")
}

func validateID(id string) error {
	if id == "" {
		return errors.New("task id is empty")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid task id %q", id)
	}
	return nil
}

func readJSON(path, what string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode %s: %w", what, err)
	}
	return record, nil
}

// writeJSONAtomic writes v next to path and renames it into place so a
// crashed writer never leaves a truncated record behind.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
