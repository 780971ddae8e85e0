package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const restockAttempts = 3

func newRestockCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restock <product-id> <delta>",
		Short: "Adjust a product's stock by delta",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[1], err)
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			catalog := service.NewCatalogService(a.store, a.kv, a.log)

			// a concurrent checkout can move the version under us
			for attempt := 1; ; attempt++ {
				inv, err := catalog.Restock(cmd.Context(), args[0], delta)
				if errors.Is(err, domain.ErrStockConflict) && attempt < restockAttempts {
					continue
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s stock is now %d\n", inv.ProductID, inv.Stock)
				return nil
			}
		},
	}
}
