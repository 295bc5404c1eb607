package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iho/payengine/internal/infrastructure/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <up|down|version>",
		Short: "Manage the snapshot export schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("migrate requires DATABASE_URL")
			}

			direction := args[0]
			if direction != "up" && direction != "down" && direction != "version" {
				return fmt.Errorf("unknown migrate command %q (want up, down or version)", direction)
			}

			migrator, err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log)
			if err != nil {
				return err
			}
			defer migrator.Close()

			switch direction {
			case "up":
				return migrator.Up()
			case "down":
				return migrator.Down()
			}

			version, ok, err := migrator.Version()
			if err != nil {
				return err
			}
			if !ok {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "none")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
	return cmd
}
