package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/oggyb/agentmatch/internal/db"
)

func newSeedCmd() *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Wipe the database and load the demo agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			gdb, err := db.NewDB(cfg)
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer sqlDB.Close()
			}

			keys, err := db.SeedTestData(gdb, seed)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(keys))
			for name := range keys {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", name, keys[name])
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 picks one)")
	return cmd
}
