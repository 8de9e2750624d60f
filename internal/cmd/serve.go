package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"voicero/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve every Lambda route over HTTP",
	Long: `Start a gin server that converts each request into the API Gateway v2 event
the Lambda functions receive, so the app proxy, webhooks and OAuth routes can be
exercised locally (for example through a Shopify CLI tunnel).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to :$PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, done, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer done()

	addr := serveAddr
	if addr == "" {
		addr = ":" + a.Config.Port
	}

	srv := server.New(a.Route, a.Logger, a.Config.IsProduction())
	a.Logger.Info("server starting", zap.String("addr", addr))
	if err := srv.Start(ctx, addr); err != nil && ctx.Err() == nil {
		return err
	}
	a.Logger.Info("server stopped")
	return nil
}

