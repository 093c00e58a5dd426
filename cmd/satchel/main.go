package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "satchel",
	Short: "Research agent toolbox: MCP server, batch research, and caches",
	Long: `satchel exposes a toolbox of research operations (AWS cost estimation,
openFDA and PubMed lookups, web search, document generation) to MCP
clients, and drives batch company research against the same caches.

Start the server with 'satchel start', then point an MCP client at the
stdio transport or the management API on the configured port.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the satchel version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("satchel version %s\n", version)
	},
}

// setupLogging installs the default slog handler. Commands that do real
// work (start, research process) call this after loading config.
func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
