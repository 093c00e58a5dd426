package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/taskcache"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestStatusCommand_Running(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestStatusCommand_QueriesAPI(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health":         `{"status":"ok","version":"test"}`,
		"GET /v1/tasks":       `[{"task_id":"q3-screen","total_companies":569,"processed_companies":120}]`,
		"GET /v1/cache/stats": `{"items":4,"total_bytes":1048576,"max_bytes":104857600}`,
	})

	old := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	defer func() { newAPIClient = old }()

	if err := showStatus(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"/health", "/v1/tasks", "/v1/cache/stats"}
	if len(ts.requests) != len(want) {
		t.Fatalf("got %d requests, want %d: %+v", len(ts.requests), len(want), ts.requests)
	}
	for i, path := range want {
		if ts.requests[i].Path != path {
			t.Errorf("requests[%d].Path = %q, want %q", i, ts.requests[i].Path, path)
		}
	}
	for _, r := range ts.requests {
		if r.Auth != "Bearer test-token" {
			t.Errorf("%s sent auth %q, want 'Bearer test-token'", r.Path, r.Auth)
		}
	}
}

func TestTaskListDecoding(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/tasks": `[{"task_id":"q3-screen","total_companies":569,"processed_companies":120,"failed_companies":3,"last_updated":"2025-08-01T10:00:00Z"}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/v1/tasks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var tasks []taskcache.TaskSummary
	if err := decodeJSON(resp, &tasks); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].TaskID != "q3-screen" {
		t.Errorf("task_id = %q, want q3-screen", tasks[0].TaskID)
	}
	if tasks[0].Processed != 120 {
		t.Errorf("processed = %d, want 120", tasks[0].Processed)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want 'Bearer test-token'", ts.requests[0].Auth)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/v1/tasks")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestResearchCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"research", "process"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "2 arg") {
		t.Errorf("error = %q, want it to mention '2 arg'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4700
	cfg.Research.TargetCount = 569

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4700" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4700 in ShowAll output")
	}
}

func TestReadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.txt")
	content := "Acme Therapeutics\n\n# paused\n  Borealis Labs  \nCachelot Systems\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	companies, err := readRoster(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"Acme Therapeutics", "Borealis Labs", "Cachelot Systems"}
	if len(companies) != len(want) {
		t.Fatalf("got %d companies, want %d: %v", len(companies), len(want), companies)
	}
	for i := range want {
		if companies[i] != want[i] {
			t.Errorf("companies[%d] = %q, want %q", i, companies[i], want[i])
		}
	}
}

func TestReadRoster_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("\n# only comments\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := readRoster(path); err == nil {
		t.Fatal("expected error for roster with no names")
	}
}

func TestReadRoster_MissingFile(t *testing.T) {
	if _, err := readRoster(filepath.Join(t.TempDir(), "ghost.txt")); err == nil {
		t.Fatal("expected error for missing roster file")
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(t.TempDir())

	if _, err := readPIDFile(path); err == nil {
		t.Fatal("expected error for missing PID file")
	}

	if err := writePIDFile(path); err != nil {
		t.Fatalf("write error: %v", err)
	}

	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Fatal("expected error after PID file removal")
	}
}
