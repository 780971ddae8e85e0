package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const serviceName = "storefront"

// rootOptions override the environment configuration.
type rootOptions struct {
	Backend  string
	LogLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Storefront cart and checkout server",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend (sqlite|mysql), overrides STOREFRONT_BACKEND")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides STOREFRONT_LOG_LEVEL")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newRestockCommand(opts))

	return cmd
}
