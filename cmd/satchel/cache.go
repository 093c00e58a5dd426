package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/kvcache"
)

// --- cache commands ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the general-purpose cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache item count and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats()
		if err != nil {
			return fmt.Errorf("reading cache stats: %w", err)
		}

		printStatus("Items", "%d", st.Items)
		printStatus("Size", "%.1f of %d MB", float64(st.TotalBytes)/(1<<20), cfg.Cache.MaxSizeMB)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached item",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("this deletes every cached item; rerun with --confirm to proceed")
			return nil
		}

		store, _, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		printSuccess("Cache cleared")
		return nil
	},
}

func openCache() (*kvcache.Store, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	store, err := kvcache.Open(cfg.Storage.DataDir, cfg.Cache.MaxSizeMB)
	if err != nil {
		return nil, cfg, fmt.Errorf("opening cache store: %w", err)
	}
	return store, cfg, nil
}

func init() {
	cacheClearCmd.Flags().Bool("confirm", false, "actually clear the cache")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
