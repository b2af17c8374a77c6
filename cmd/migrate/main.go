// migrate applies or rolls back the embedded accounts schema. DATABASE_URL must be set.
package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"smartbanker/backend/internal/config"
	"smartbanker/backend/internal/db/migrate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the SmartBanker Postgres schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newDirectionCmd(migrate.Up, "Apply all pending migrations"),
		newDirectionCmd(migrate.Down, "Roll back every applied migration"),
		newVersionCmd(),
	)
	return root
}

func newDirectionCmd(direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   direction,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			if err := migrate.Run(dsn, direction); err != nil {
				return oops.Code("MIGRATION_FAILED").With("direction", direction).Wrap(err)
			}
			cmd.Printf("migrate %s: done\n", direction)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			v, dirty, err := migrate.Version(dsn)
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "version").Wrap(err)
			}
			cmd.Printf("version %d (dirty=%t)\n", v, dirty)
			return nil
		},
	}
}

func databaseURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required")
	}
	return cfg.DatabaseURL, nil
}
