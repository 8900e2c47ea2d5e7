package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/mindbank/internal/database"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema commands",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if err := database.RunMigrations(cfg.Database); err != nil {
					return fmt.Errorf("database.RunMigrations() > %w", err)
				}
				color.Green("database schema is up to date")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				m, err := database.NewMigrator(cfg.Database)
				if err != nil {
					return fmt.Errorf("database.NewMigrator() > %w", err)
				}
				defer func() {
					_, _ = m.Close()
				}()

				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "no migration has been applied")
					return nil
				}
				if err != nil {
					return fmt.Errorf("m.Version() > %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", version)
				if dirty {
					color.Red("the last migration failed; fix the schema before migrating again")
				}
				return nil
			},
		},
	)
	return migrateCmd
}
