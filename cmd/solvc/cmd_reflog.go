package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReflogCmd(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [branch]",
		Short: "Show where a branch head has pointed, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, false, func(s *session) error {
				branch := s.repo.CurrentBranch()
				if len(args) == 1 {
					branch = args[0]
				}
				out := cmd.OutOrStdout()
				for i, e := range s.repo.Reflog(branch, limit) {
					target := e.NewHash.Short()
					if target == "" {
						target = "(deleted)"
					}
					fmt.Fprintf(out, "%s %s@{%d}: %s\n", target, branch, i, e.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of entries shown")
	return cmd
}
