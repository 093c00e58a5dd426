package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/satchelworks/satchel/internal/api"
	"github.com/satchelworks/satchel/internal/awsprice"
	"github.com/satchelworks/satchel/internal/browser"
	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/fda"
	"github.com/satchelworks/satchel/internal/httpx"
	"github.com/satchelworks/satchel/internal/kvcache"
	"github.com/satchelworks/satchel/internal/pubmed"
	"github.com/satchelworks/satchel/internal/session"
	"github.com/satchelworks/satchel/internal/taskcache"
	"github.com/satchelworks/satchel/internal/webtool"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the satchel server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running satchel server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show satchel system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "satchel.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// openTaskStore returns the research task cache, shared between the MCP
// server and the research subcommands.
func openTaskStore(cfg config.Config) *taskcache.Store {
	return taskcache.NewRoot(cfg.Cache.Root).Agent("research")
}

// newOutboundClient builds the HTTP client shared by the openFDA and
// web endpoints, held to a conservative 3 req/s.
func newOutboundClient() *httpx.Client {
	return httpx.New(httpx.Config{
		UserAgent: "satchel/" + version,
		Limiter:   httpx.NewRateLimiter(3, 3),
	})
}

// newNCBIClient builds the client for the E-utilities. NCBI allows
// 3 req/s without an API key and 10 with one.
func newNCBIClient(apiKey string) *httpx.Client {
	rate := 3.0
	if apiKey != "" {
		rate = 10
	}
	return httpx.New(httpx.Config{
		UserAgent: "satchel/" + version,
		Limiter:   httpx.NewRateLimiter(rate, rate),
	})
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "satchel version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	setupLogging(cfg.Log.Level)

	// Token for bearer auth on the management API. Generated and stored
	// on first use, so start fails fast if the secret store is broken.
	apiToken, err := config.GetAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("satchel is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("satchel is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open stores.
	tasks := openTaskStore(cfg)
	sessions := session.NewManager(filepath.Join(cfg.Cache.Root, "sessions"))
	cache, err := kvcache.Open(cfg.Storage.DataDir, cfg.Cache.MaxSizeMB)
	if err != nil {
		return fmt.Errorf("opening cache store: %w", err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing cache store: %v\n", err)
		}
	}()

	// openFDA and web share one outbound client; NCBI gets its own so
	// the limiter can run at the key-dependent rate.
	hc := newOutboundClient()
	fdaClient := fda.NewClient(hc, "", cfg.OpenFDA.APIKey)
	pubmedClient := pubmed.NewClient(newNCBIClient(cfg.NCBI.APIKey), pubmed.Config{
		Tool:   "satchel",
		Email:  cfg.NCBI.Email,
		APIKey: cfg.NCBI.APIKey,
	})
	webClient := webtool.NewClient(hc, webtool.Config{})

	// Browser session starts Playwright lazily on the first screenshot.
	browserSession := browser.NewSession(browser.Config{Headless: cfg.Browser.Headless})
	defer func() {
		if err := browserSession.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing browser: %v\n", err)
		}
	}()

	deps := api.Deps{
		Tasks:    tasks,
		Sessions: sessions,
		Cache:    cache,
		Prices:   awsprice.DefaultTable(),
		Feed:     awsprice.NewFeed(hc, ""),
		FDA:      fdaClient,
		PubMed:   pubmedClient,
		Web:      webClient,
		Browser:  browserSession,
		OutDir:   filepath.Join(cfg.Storage.DataDir, "artifacts"),
	}

	// Build HTTP handler and server.
	handler := api.NewHTTPHandler(api.HTTPDeps{
		Deps:    deps,
		Token:   apiToken,
		Version: version,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Build and start MCP server (stdio transport in a goroutine).
	mcpSrv := api.NewMCPServer(deps)
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "satchel listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("satchel is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop satchel (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to satchel (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	running := false
	client, clientErr := newAPIClient()
	if clientErr != nil {
		printStatus("Server", "unknown (%v)", clientErr)
	} else {
		client.httpClient.Timeout = 2 * time.Second
		if resp, err := client.get(ctx, "/health"); err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				printStatus("Server", "running on port %d", cfg.Server.Port)
				running = true
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}
	}

	// Task and cache counts come from the management API.
	if running {
		if resp, err := client.get(ctx, "/v1/tasks"); err == nil {
			var tasks []taskcache.TaskSummary
			if decodeJSON(resp, &tasks) == nil {
				printStatus("Research tasks", "%d", len(tasks))
			}
		}
		if resp, err := client.get(ctx, "/v1/cache/stats"); err == nil {
			var stats kvcache.Stats
			if decodeJSON(resp, &stats) == nil {
				printStatus("Cache", "%d items, %.1f of %d MB", stats.Items,
					float64(stats.TotalBytes)/(1<<20), stats.MaxBytes/(1<<20))
			}
		}
	}

	printStatus("Cache root", "%s", cfg.Cache.Root)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
