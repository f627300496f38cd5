package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/repo"
)

func newLogCmd(g *globals) *cobra.Command {
	var (
		oneline bool
		full    bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "log [branch]",
		Short: "Show commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, false, func(s *session) error {
				branch := ""
				if len(args) == 1 {
					branch = args[0]
				}

				history := s.repo.History
				if full {
					history = s.repo.FullHistory
				}
				commits, err := history(branch)
				if err != nil {
					return err
				}
				if len(commits) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no commits yet")
					return nil
				}
				if limit > 0 && len(commits) > limit {
					commits = commits[:limit]
				}

				heads := branchHeads(s.repo)
				out := cmd.OutOrStdout()
				for _, c := range commits {
					printCommit(out, c, heads[string(c.ID)], oneline)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "one line per commit")
	cmd.Flags().BoolVar(&full, "full", false, "follow every parent, not only the first")
	cmd.Flags().IntVarP(&limit, "max-count", "n", 0, "limit the number of commits shown")

	return cmd
}

// branchHeads maps each head commit to the branches pointing at it.
func branchHeads(r *repo.Repository) map[string][]string {
	out := make(map[string][]string)
	for _, b := range r.ListBranches() {
		out[string(b.Head)] = append(out[string(b.Head)], b.Name)
	}
	return out
}

func printCommit(out io.Writer, c *repo.Commit, branches []string, oneline bool) {
	decoration := ""
	if len(branches) > 0 {
		decoration = " (" + strings.Join(branches, ", ") + ")"
	}
	if oneline {
		fmt.Fprintf(out, "%s%s %s\n", c.ID.Short(), decoration, c.Summary())
		return
	}
	fmt.Fprintf(out, "commit %s%s\n", c.ID, decoration)
	if len(c.ParentIDs) > 1 {
		parents := make([]string, len(c.ParentIDs))
		for i, p := range c.ParentIDs {
			parents[i] = p.Short()
		}
		fmt.Fprintf(out, "Merge:  %s\n", strings.Join(parents, " "))
	}
	fmt.Fprintf(out, "Author: %s\n", c.Author)
	fmt.Fprintf(out, "Date:   %s\n", c.Timestamp.Format("2006-01-02 15:04:05 -0700"))
	if c.Signature != "" {
		fmt.Fprintln(out, "Signed: yes")
	}
	fmt.Fprintln(out)
	for _, l := range strings.Split(strings.TrimRight(c.Message, "\n"), "\n") {
		fmt.Fprintf(out, "    %s\n", l)
	}
	fmt.Fprintln(out)
}
