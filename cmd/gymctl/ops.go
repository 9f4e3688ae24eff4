package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gym-membership/internal/application"
	"gym-membership/internal/config"
	"gym-membership/internal/infra/logging"
)

func loadEnv() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath, devMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}

func withApp(cmd *cobra.Command, fn func(app *application.App) (any, error)) error {
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	app, err := application.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := fn(app)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire memberships whose end date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(app *application.App) (any, error) {
				return app.Expiry.Sweep(cmd.Context())
			})
		},
	}
}

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Retry failed activations and re-verify stale pending payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(app *application.App) (any, error) {
				return app.Reconciler.RunOnce(cmd.Context())
			})
		},
	}
}

func newPlansCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Plan catalog tools",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "seed",
			Short: "Install the default plan catalog (skips plans that already exist by name)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(app *application.App) (any, error) {
					added, err := application.SeedPlans(cmd.Context(), app.Plans, application.DefaultPlans)
					return map[string]int{"added": added}, err
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every plan, active or not",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, func(app *application.App) (any, error) {
					return app.Plans.List(cmd.Context(), true)
				})
			},
		},
	)
	return cmd
}
