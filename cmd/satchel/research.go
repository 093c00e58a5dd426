package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/research"
	"github.com/satchelworks/satchel/internal/taskcache"
	"github.com/satchelworks/satchel/internal/webtool"
)

// --- research commands ---

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run and inspect batch company research",
}

var researchProcessCmd = &cobra.Command{
	Use:   "process <task-id> <roster-file>",
	Short: "Research every company in a roster file",
	Long: `Research every company listed in the roster file, one name per line.
Results and progress are written to the task cache, so an interrupted
run can be resumed without repeating finished companies.

Examples:
  satchel research process q3-screen companies.txt
  satchel research process q3-screen companies.txt --no-color`,
	Args: cobra.ExactArgs(2),
	RunE: runResearch,
}

var researchResumeCmd = &cobra.Command{
	Use:   "resume <task-id> <roster-file>",
	Short: "Resume an interrupted research task",
	Long: `Resume a research task. Companies already in the cache are skipped,
so only the remainder of the roster is fetched.

Examples:
  satchel research resume q3-screen companies.txt`,
	Args: cobra.ExactArgs(2),
	RunE: runResearch,
}

var researchStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show progress for a research task",
	Long: `Show cached progress for a research task. With --watch the command
polls until the processed count reaches the target.

Examples:
  satchel research status q3-screen
  satchel research status q3-screen --watch --target 569 --interval 60s`,
	Args: cobra.ExactArgs(1),
	RunE: runResearchStatus,
}

func runResearch(cmd *cobra.Command, args []string) error {
	taskID, rosterPath := args[0], args[1]

	companies, err := readRoster(rosterPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStep("Researching %d companies for task %q", len(companies), taskID)

	runner := newRunner(cfg)
	rep, err := runner.Process(ctx, taskID, companies)
	if err != nil {
		if rep.Processed > 0 || rep.Skipped > 0 {
			printWarning("stopped after %d of %d companies; 'satchel research resume' continues", rep.Skipped+rep.Processed, rep.Total)
		}
		return err
	}

	printSuccess("Researched %d of %d companies (%d already cached)", rep.Processed, rep.Total, rep.Skipped)
	if len(rep.Failed) > 0 {
		printWarning("%d failed: %s", len(rep.Failed), strings.Join(rep.Failed, ", "))
	}
	return nil
}

func runResearchStatus(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags win over config; the flag defaults mirror the config defaults.
	target := cfg.Research.TargetCount
	if cmd.Flags().Changed("target") {
		target, _ = cmd.Flags().GetInt("target")
	}
	intervalStr := cfg.Research.PollInterval
	if cmd.Flags().Changed("interval") {
		intervalStr, _ = cmd.Flags().GetString("interval")
	}
	watch, _ := cmd.Flags().GetBool("watch")

	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return fmt.Errorf("invalid poll interval %q: %w", intervalStr, err)
	}

	runner := &research.Runner{Tasks: openTaskStore(cfg)}

	for {
		st, err := runner.Status(taskID)
		if err != nil {
			if errors.Is(err, taskcache.ErrNotFound) {
				printError("no progress recorded for task %q", taskID)
			}
			return err
		}
		printResearchStatus(st)

		if !watch {
			return nil
		}
		done := target
		if st.Total > 0 && st.Total < done {
			done = st.Total
		}
		if done > 0 && st.Processed >= done {
			printSuccess("Target reached: %d of %d companies processed", st.Processed, done)
			return nil
		}
		select {
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		case <-time.After(interval):
		}
	}
}

func printResearchStatus(st research.Status) {
	printStatus("Task", "%s", st.TaskID)
	printStatus("Progress", "%d of %d companies (%.0f%%)", st.Processed, st.Total, st.Completion*100)
	if st.Batch > 0 {
		printStatus("Batch", "%d", st.Batch)
	}
	if st.StartTime != "" {
		printStatus("Started", "%s", st.StartTime)
	}
	if len(st.Failed) > 0 {
		printStatus("Failed", "%s", strings.Join(st.Failed, ", "))
	}
}

func newRunner(cfg config.Config) *research.Runner {
	web := webtool.NewClient(newOutboundClient(), webtool.Config{})
	return &research.Runner{
		Tasks:     openTaskStore(cfg),
		Searcher:  web,
		Fetcher:   web,
		Workers:   cfg.Research.Parallel,
		BatchSize: cfg.Research.BatchSize,
	}
}

// readRoster loads one company name per line, skipping blank lines and
// '#' comments.
func readRoster(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}

	var companies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		companies = append(companies, line)
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("roster %s contains no company names", path)
	}
	return companies, nil
}

func init() {
	researchStatusCmd.Flags().Bool("watch", false, "poll until the target count is reached")
	researchStatusCmd.Flags().Int("target", 569, "processed-company count that ends --watch")
	researchStatusCmd.Flags().String("interval", "60s", "poll interval for --watch")

	researchCmd.AddCommand(researchProcessCmd)
	researchCmd.AddCommand(researchResumeCmd)
	researchCmd.AddCommand(researchStatusCmd)
}
