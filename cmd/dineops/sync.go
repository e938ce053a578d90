package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/config"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/netmon"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/service"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/store"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/remote"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the pending-mutation queue now",
	Long: `Replay all pending mutations against the backend in one pass.

Each entry is dispatched to its remote operation in enqueue order. Entries
that fail stay queued with an incremented retry count; entries past the
retry ceiling are skipped and must be resolved manually.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger("[dineops] ")

		svc, st, _ := mustBuildService(logger)
		defer st.Close()

		fmt.Printf("Syncing pending mutations...\n")
		start := time.Now()

		summary, err := svc.SyncNow(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error during sync: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Synced: %d\n", summary.Synced)
		fmt.Printf("   Failed: %d\n", summary.Failed)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show offline storage status",
	Long: `Display aggregate counts from the local durable store.

Shows per-collection record counts, the pending queue depth, and how many
entries have exhausted their retry budget.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger("[dineops] ")

		svc, st, cfg := mustBuildService(logger)
		defer st.Close()

		stats, err := svc.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stats: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\nOffline Storage Status\n\n")
		fmt.Printf("Store: %s\n", cfg.DBPath)
		fmt.Printf("Orders: %d\n", stats.Orders)
		fmt.Printf("Products: %d\n", stats.Products)
		fmt.Printf("Customers: %d\n", stats.Customers)
		fmt.Printf("Tables: %d\n", stats.Tables)
		fmt.Printf("Pending sync: %d\n", stats.PendingSync)
		if stats.Exhausted > 0 {
			fmt.Printf("Exhausted (needs attention): %d\n", stats.Exhausted)
		}
		fmt.Println()
	},
}

// mustBuildService loads config and assembles the offline service. Exits on
// any failure; these are operator commands, not library code.
func mustBuildService(logger *log.Logger) (*service.Service, *store.Store, *config.Config) {
	return mustBuildServiceWithSink(logger, nil)
}

func mustBuildServiceWithSink(logger *log.Logger, sink service.EventSink) (*service.Service, *store.Store, *config.Config) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}

	if err := st.InitSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}

	client, err := remote.New(remote.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating backend client: %v\n", err)
		os.Exit(1)
	}

	monitor, err := netmon.New(netmon.Config{
		Probe:    client.Probe,
		Interval: cfg.ProbeInterval,
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating network monitor: %v\n", err)
		os.Exit(1)
	}

	svc, err := service.New(service.Config{
		Store:         st,
		Applier:       client,
		Monitor:       monitor,
		Fetcher:       client,
		Sink:          sink,
		RetryCeiling:  cfg.RetryCeiling,
		StatsInterval: cfg.StatsInterval,
		Logger:        logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating offline service: %v\n", err)
		os.Exit(1)
	}

	return svc, st, cfg
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
