package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wattlebot/wattle/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "wattle",
	Short: "Wattle is a conversation flow engine for chatbots",
	Long:  `Wattle runs block-graph conversation flows defined in YAML: it matches incoming messages against triggers, renders replies, and keeps per-subscriber state across turns.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("flow", "f", "flow.yaml", "Path to the flow definition file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log output format (text or json)")
}

// newLogger builds the process logger from the persistent logging flags.
func newLogger(cmd *cobra.Command) *slog.Logger {
	levelText, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		level = slog.LevelInfo
	}
	if format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}
