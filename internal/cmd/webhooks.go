package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Manage Shopify webhook subscriptions",
}

var subscribeShop string

var webhooksSubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Re-register the app webhooks for an installed shop",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, done, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer done()

		if a.Config.Shopify.AppURL == "" {
			return fmt.Errorf("SHOPIFY_APP_URL is required to subscribe webhooks")
		}
		shop := strings.ToLower(strings.TrimSpace(subscribeShop))
		token, _, err := a.Integrations.Load(ctx, shop)
		if err != nil {
			return err
		}

		created, failed := a.SubscribeWebhooks(ctx, shop, token)
		for _, topic := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "subscribed %s\n", topic)
		}
		for _, f := range failed {
			logShop(a, shop).Warn("webhook subscription failed", zap.String("topic", f["topic"]), zap.String("error", f["error"]))
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d webhook subscription(s) failed", len(failed))
		}
		return nil
	},
}

func init() {
	webhooksSubscribeCmd.Flags().StringVar(&subscribeShop, "shop", "", "shop domain, e.g. demo.myshopify.com")
	_ = webhooksSubscribeCmd.MarkFlagRequired("shop")
	webhooksCmd.AddCommand(webhooksSubscribeCmd)
	rootCmd.AddCommand(webhooksCmd)
}
