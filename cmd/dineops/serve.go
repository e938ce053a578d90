package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/config"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/dashboard"
	"github.com/luisk202009/kuppel-dine-ease-sub002/internal/offline/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the offline sync daemon (foreground)",
	Long: `Run the sync daemon: connectivity monitoring, automatic queue drains
on reconnect, periodic stats polling, and the status dashboard.

The daemon will:
  1. Probe backend reachability on an interval
  2. Drain the pending queue on every offline-to-online transition
  3. Broadcast stats, sync summaries, and connectivity over WebSocket
  4. Reload tunables when the config file changes`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger("[serve] ")

		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		var srv *dashboard.Server
		var sink service.EventSink
		if cfg.DashboardPort != 0 {
			srv = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.DashboardPort,
				Logger: logger,
			})
			if err := srv.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer srv.Stop()
			sink = dashboard.NewHandler(srv, logger)
		}

		svc, st, _ := mustBuildServiceWithSink(logger, sink)
		defer st.Close()

		if srv != nil {
			srv.SetStatsFunc(func() any {
				stats, err := svc.Stats(cmd.Context())
				if err != nil {
					return map[string]string{"error": err.Error()}
				}
				return stats
			})
		}

		if err := svc.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting service: %v\n", err)
			os.Exit(1)
		}
		defer svc.Stop()

		// Hot reload is advisory: a changed file is validated and logged.
		// Interval and ceiling changes take effect on the next restart.
		if configPath != "" {
			w, err := config.Watch(configPath, func(next *config.Config) {
				logger.Printf("Config change detected (retry_ceiling=%d, probe_interval=%v); restart to apply",
					next.RetryCeiling, next.ProbeInterval)
			}, logger)
			if err != nil {
				logger.Printf("Warning: config watch disabled: %v", err)
			} else {
				defer w.Stop()
			}
		}

		fmt.Printf("Offline sync daemon running\n")
		fmt.Printf("   Store: %s\n", cfg.DBPath)
		fmt.Printf("   Backend: %s\n", cfg.BackendURL)
		if srv != nil {
			fmt.Printf("   Dashboard: http://%s\n", srv.GetAddr())
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		fmt.Printf("Shutting down\n")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
