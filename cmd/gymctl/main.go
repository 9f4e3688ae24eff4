package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	devMode    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gymctl",
		Short:        "Operator tools for the gym membership service",
		Long:         `gymctl runs schema migrations, one-off expiry sweeps and payment reconciliation, and seeds the plan catalog.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Developer mode (relaxes required secrets)")

	rootCmd.AddCommand(
		newMigrateCommand(),
		newSweepCommand(),
		newReconcileCommand(),
		newPlansCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
