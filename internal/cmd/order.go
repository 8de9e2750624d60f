package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"voicero/internal/orders"

	"github.com/spf13/cobra"
)

var orderFlags struct {
	shop   string
	number string
	email  string
	reason string
	items  []string
	notes  string
}

var orderCmd = &cobra.Command{
	Use:   "order <action>",
	Short: "Run an order action against an installed shop",
	Long: `Run one of verify_order, order_details, cancel, return, return_order, exchange
or refund exactly as the app proxy would, printing the JSON response.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrder,
}

func init() {
	f := orderCmd.Flags()
	f.StringVar(&orderFlags.shop, "shop", "", "shop domain, e.g. demo.myshopify.com")
	f.StringVar(&orderFlags.number, "order", "", "order number (1001, #1001) or order GID")
	f.StringVar(&orderFlags.email, "email", "", "email on the order")
	f.StringVar(&orderFlags.reason, "reason", "", "cancel or return reason")
	f.StringSliceVar(&orderFlags.items, "items", nil, "line item ids or names to return")
	f.StringVar(&orderFlags.notes, "notes", "", "notes for the merchant")
	_ = orderCmd.MarkFlagRequired("shop")
	rootCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, args []string) error {
	action := orders.Action(strings.ToLower(strings.TrimSpace(args[0])))
	if !orders.Known(action) {
		return fmt.Errorf("unknown action %q", args[0])
	}

	ctx := cmd.Context()
	a, done, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer done()

	shop := strings.ToLower(strings.TrimSpace(orderFlags.shop))
	client, err := a.Integrations.ClientFor(ctx, shop, a.Config.Shopify.APIVersion, a.ClientOptions()...)
	if err != nil {
		return err
	}

	opts := []orders.ResolverOption{orders.WithLogger(logShop(a, shop))}
	if a.Notifier != nil {
		opts = append(opts, orders.WithNotifier(a.Notifier))
	}
	resp, resolveErr := orders.NewResolver(client, opts...).Resolve(ctx, orders.Request{
		Action:      action,
		OrderNumber: orderFlags.number,
		Email:       orderFlags.email,
		Reason:      orderFlags.reason,
		Items:       orderFlags.items,
		Notes:       orderFlags.notes,
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return resolveErr
}
