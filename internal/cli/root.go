// Package cli implements the matchctl operations commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/oggyb/agentmatch/internal/bootstrap"
	"github.com/oggyb/agentmatch/internal/config"
	"github.com/oggyb/agentmatch/internal/logger"
)

var dbPath string

// NewRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of tests.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Operate an agentmatch deployment",
		Long:          "Runs migrations, background jobs and seeding against the configured database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "sqlite", "", "Use a local SQLite file instead of DB_DRIVER/DB_DSN")

	root.AddCommand(newMigrateCmd(), newJobsCmd(), newSeedCmd(), newStatsCmd())
	return root
}

// loadConfig reads the environment and applies the global flags.
func loadConfig() *config.Config {
	cfg := config.New()
	if dbPath != "" {
		cfg.DB.Driver = "sqlite"
		cfg.DB.DSN = dbPath
	}
	logger.InitFromConfig(cfg)
	return cfg
}

func openRuntime(ctx context.Context) (*bootstrap.Runtime, error) {
	cfg := loadConfig()
	return bootstrap.New(ctx, cfg, logger.L())
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
