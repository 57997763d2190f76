package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"InfoDigest/internal/app"
	"InfoDigest/internal/config"
	"InfoDigest/internal/infrastructure/telegram"
	"InfoDigest/internal/logging"
)

var (
	configPath string
	dashAddr   string
	cliUser    string

	rootCmd = &cobra.Command{
		Use:           "infodigest",
		Short:         "Summarize links sent to a Telegram bot into short digests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	botCmd = &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot (and the dashboard when an address is set)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				return a.RunBot(ctx)
			})
		},
	}

	dashboardCmd = &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the read-only digest API and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				return a.RunDashboard(ctx)
			})
		},
	}

	digestCmd = &cobra.Command{
		Use:   "digest <message>",
		Short: "Process one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.Application) error {
				reply, err := a.Digest(ctx, cliUser, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), telegram.FormatReply(reply))
				return nil
			})
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides INFODIGEST_CONFIG)")
	dashboardCmd.Flags().StringVar(&dashAddr, "addr", "", "listen address, overrides dashboard.addr")
	botCmd.Flags().StringVar(&dashAddr, "addr", "", "dashboard listen address, overrides dashboard.addr")
	digestCmd.Flags().StringVar(&cliUser, "user", "cli", "user id charged against the rate limit")

	rootCmd.AddCommand(botCmd, dashboardCmd, digestCmd)
}

func withApp(ctx context.Context, run func(context.Context, *app.Application) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dashAddr != "" {
		cfg.Dashboard.Addr = dashAddr
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	if err := run(ctx, application); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	logger.Info("application stopped")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
