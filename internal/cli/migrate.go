package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oggyb/agentmatch/internal/db"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the embedded SQL migrations",
	}
	cmd.AddCommand(
		migrateStep("up", "Apply all pending migrations", (*db.Migrator).Up),
		migrateStep("down", "Roll back every migration", (*db.Migrator).Down),
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				m, closeDB, err := openMigrator()
				if err != nil {
					return err
				}
				defer closeDB()
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
				return nil
			},
		},
	)
	return cmd
}

func migrateStep(use, short string, step func(*db.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, closeDB, err := openMigrator()
			if err != nil {
				return err
			}
			defer closeDB()
			if err := step(m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", use)
			return nil
		},
	}
}

func openMigrator() (*db.Migrator, func(), error) {
	cfg := loadConfig()
	cfg.DB.AutoMigrate = false
	gdb, err := db.NewDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	m, err := db.NewMigrator(gdb)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return m, closeDB, nil
}
