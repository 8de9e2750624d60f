// Package cmd holds the voicero command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"voicero/internal/app"
	"voicero/internal/config"
	"voicero/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "voicero",
	Short: "Voicero storefront assistant backend",
	Long: `voicero runs the storefront assistant's Shopify app proxy, webhooks and
OAuth install flow locally, and runs one-off order actions against an installed shop.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads config and builds the application graph shared by every subcommand.
func bootstrap(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.MustNew(cfg.Environment, cfg.LogLevel)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, func() { _ = logger.Sync() }, nil
}

func logShop(a *app.App, shop string) *zap.Logger {
	return a.Logger.With(zap.String("shop", shop))
}
