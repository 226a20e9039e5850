package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimitrije/listshub-api/internal/config"
	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "listshub-admin",
	Short:         "ListsHub maintenance commands",
	Long:          "Operational commands for the ListsHub API: schema migration, plan catalog seeding, master promotion and seat reconciliation.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB loads the environment config and connects to the database.
func openDB(ctx context.Context) (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return database.New(ctx, cfg.DatabaseURL)
}
