package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

//go:embed catalog.json
var defaultCatalog []byte

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a product catalog into the store",
		Long:  "Upserts every product from a JSON array. Without --file the bundled demo catalog is used.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data := defaultCatalog
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				if data, err = io.ReadAll(f); err != nil {
					return fmt.Errorf("read catalog: %w", err)
				}
			}

			products, err := parseCatalog(data)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			catalog := service.NewCatalogService(a.store, a.kv, a.log)
			for _, p := range products {
				if err := catalog.SaveProduct(cmd.Context(), p); err != nil {
					return fmt.Errorf("seed %s: %w", p.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", len(products))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a catalog JSON file")

	return cmd
}

func parseCatalog(data []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return products, nil
}
