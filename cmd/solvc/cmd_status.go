package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/repo"
)

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged, unstaged and untracked changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, false, func(s *session) error {
				entries, err := s.repo.Status()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				branch := s.repo.CurrentBranch()
				if _, err := s.repo.Branch(branch); err != nil {
					fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
				} else {
					fmt.Fprintf(out, "on %s\n", branch)
				}

				var staged, unstaged, untracked []string
				for _, e := range entries {
					switch e.Index {
					case repo.IndexAdded:
						staged = append(staged, "  + "+e.Path)
					case repo.IndexModified:
						staged = append(staged, "  ~ "+e.Path)
					case repo.IndexDeleted:
						staged = append(staged, "  - "+e.Path)
					}
					switch e.Worktree {
					case repo.WorktreeModified:
						unstaged = append(unstaged, "  ~ "+e.Path)
					case repo.WorktreeDeleted:
						unstaged = append(unstaged, "  - "+e.Path)
					case repo.WorktreeUntracked:
						untracked = append(untracked, "  "+e.Path)
					}
				}

				for _, section := range []struct {
					title string
					lines []string
				}{
					{"staged:", staged},
					{"unstaged:", unstaged},
					{"untracked:", untracked},
				} {
					if len(section.lines) == 0 {
						continue
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, section.title)
					for _, l := range section.lines {
						fmt.Fprintln(out, l)
					}
				}
				return nil
			})
		},
	}
}
