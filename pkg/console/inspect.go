package console

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/payvide/payworker/pkg/root"
)

var inspectCmd = &cobra.Command{
	Use:   "payment:inspect [order-id]",
	Short: "Show a payment, its history and a fresh outcome token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		app, err := buildApp(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build application")
		}
		defer app.DB.Close()

		orderID := args[0]

		view, err := app.Service.GetPayment(ctx, orderID)
		if err != nil {
			log.Fatal().Err(err).Str("order_id", orderID).Msg("payment lookup failed")
		}

		fmt.Printf("order:    %s\n", view.OrderID)
		fmt.Printf("status:   %s\n", view.Status)
		fmt.Printf("amount:   %s %s\n", view.Amount, view.Currency)
		fmt.Printf("method:   %s\n", view.PaymentMethod)
		fmt.Printf("customer: %s <%s>\n", view.CustomerNamePlain, view.CustomerEmailPlain)
		if view.PaidAt != nil {
			fmt.Printf("paid at:  %s\n", view.PaidAt.Format("2006-01-02 15:04:05 MST"))
		}

		history, err := app.Service.History(ctx, orderID)
		if err != nil {
			log.Fatal().Err(err).Msg("history lookup failed")
		}
		fmt.Println("history:")
		for _, h := range history {
			fmt.Printf("  %s  %-12s %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"), h.Status, h.Notes)
		}

		tok, err := app.Service.OutcomeToken(ctx, orderID)
		if err != nil {
			log.Fatal().Err(err).Msg("token issue failed")
		}
		fmt.Printf("outcome token: %s\n", tok)
	},
}

func init() {
	root.GetRoot().AddCommand(inspectCmd)
}
