package commands

import (
	"context"
	"log/slog"
	"time"

	"labelbot/internal/components/telemetry"
	"labelbot/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var (
	verbose    *bool
	configPath *string

	otelShutdown func(context.Context) error
)

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output.")
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "Config file, <name>.local.<ext> next to it overrides it.")
}

var rootCmd = &cobra.Command{
	Use:   "labelbot",
	Short: "labelbot announces newly approved alcohol labels from the TTB COLA registry.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		tel, err := telemetry.SetupFromEnv(cmd.Context(), "labelbot")
		if err != nil {
			slog.Warn("failed to setup telemetry, continuing without it", "err", err)
			return
		}
		otelShutdown = tel.Shutdown
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdownTelemetry()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func shutdownTelemetry() {
	if otelShutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := otelShutdown(ctx); err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	otelShutdown = nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// PersistentPostRun is skipped when a command fails
		shutdownTelemetry()
		serviceutil.Fatal("labelbot failed", err)
	}
}
