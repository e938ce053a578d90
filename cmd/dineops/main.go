// Command dineops manages the Kuppel DineEase offline sync subsystem:
// manual queue drains, storage status, and the long-running sync daemon
// with its status dashboard.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "dineops",
	Short: "Offline sync operations for Kuppel DineEase",
	Long: `dineops manages the offline-first persistence layer of the DineEase
retail app: the local durable store, the pending-mutation queue, and the
synchronizer that replays queued work against the backend.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to a rotated file instead of stderr")
}

// newLogger builds the process logger. With --log-file set, output goes
// through lumberjack rotation so the serve daemon can run unattended.
func newLogger(prefix string) *log.Logger {
	if logFile == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}

	return log.New(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}, prefix, log.LstdFlags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
