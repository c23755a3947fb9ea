package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List or run background jobs once",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered jobs",
			RunE: func(cmd *cobra.Command, _ []string) error {
				rt, err := openRuntime(cmd.Context())
				if err != nil {
					return err
				}
				defer rt.Close()
				for _, name := range rt.Scheduler.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:     "run <name>",
			Short:   "Run one job now and print its report",
			Example: "  matchctl jobs run karma-recalc\n  matchctl jobs run breakup-eval",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rt, err := openRuntime(cmd.Context())
				if err != nil {
					return err
				}
				defer rt.Close()
				report, err := rt.Scheduler.RunOnce(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("job %s: %w", args[0], err)
				}
				return printJSON(cmd.OutOrStdout(), report)
			},
		},
	)
	return cmd
}
