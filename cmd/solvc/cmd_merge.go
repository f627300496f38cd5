package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/repo"
)

func newMergeCmd(g *globals) *cobra.Command {
	var (
		into         string
		resolveLines bool
		message      string
	)

	cmd := &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge a branch into the current branch (or --into another)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			return withRepo(cmd, g, true, func(s *session) error {
				opts := repo.MergeOptions{
					ResolveLines: resolveLines || s.ws.Config.Merge.ResolveLines,
					Author:       s.author(),
					Message:      message,
				}
				out := cmd.OutOrStdout()
				res, err := s.repo.MergeWithOptions(source, into, opts)
				if err != nil {
					var mce *repo.MergeConflictError
					if errors.As(err, &mce) {
						printConflicts(out, mce)
					}
					return err
				}
				printMergeResult(out, res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&into, "into", "", "target branch (default: current branch)")
	cmd.Flags().BoolVar(&resolveLines, "resolve-lines", false, "merge non-overlapping line edits to the same file")
	cmd.Flags().StringVarP(&message, "message", "m", "", "merge commit message")

	return cmd
}

func printMergeResult(out io.Writer, res *repo.MergeResult) {
	switch res.Kind {
	case repo.MergeUpToDate:
		fmt.Fprintf(out, "%s is already up to date with %s\n", res.Target, res.Source)
	case repo.MergeFastForward:
		fmt.Fprintf(out, "fast-forward %s to %s\n", res.Target, res.Head.Short())
	default:
		for _, p := range res.LineMerged {
			fmt.Fprintf(out, "  %s: merged line edits\n", p)
		}
		fmt.Fprintf(out, "[%s %s] Merge branch '%s'\n", res.Target, res.Head.Short(), res.Source)
	}
}

func printConflicts(out io.Writer, mce *repo.MergeConflictError) {
	fmt.Fprintf(out, "merging %s into %s: %d conflict(s)\n", mce.Source, mce.Target, len(mce.Conflicts))
	for _, c := range mce.Conflicts {
		fmt.Fprintf(out, "  %s: CONFLICT\n", c.Path)
	}
	fmt.Fprintln(out, "nothing was changed; resolve on either branch and merge again")
}
