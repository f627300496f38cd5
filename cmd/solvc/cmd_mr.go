package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/repo"
)

func newMergeRequestCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mr",
		Aliases: []string{"merge-request"},
		Short:   "Propose, review, and land merges between branches",
	}
	cmd.AddCommand(newMRCreateCmd(g))
	cmd.AddCommand(newMRListCmd(g))
	cmd.AddCommand(newMRShowCmd(g))
	cmd.AddCommand(newMRStatusCmd(g, "close", repo.MergeRequestClosed, "Close a merge request without merging"))
	cmd.AddCommand(newMRStatusCmd(g, "merge", repo.MergeRequestMerged, "Merge the source branch and mark the request merged"))
	cmd.AddCommand(newMRReviewCmd(g))
	return cmd
}

func newMRCreateCmd(g *globals) *cobra.Command {
	var (
		source      string
		target      string
		title       string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a merge request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, true, func(s *session) error {
				src := source
				if src == "" {
					src = s.repo.CurrentBranch()
				}
				dst := target
				if dst == "" {
					dst = s.ws.Config.Core.DefaultBranch
				}
				mr, err := s.repo.CreateMergeRequest(src, dst, title, description, s.author())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "opened merge request %s: %s -> %s\n", mr.ID, mr.SourceBranch, mr.TargetBranch)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "source branch (default: current branch)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target branch (default: core.default_branch)")
	cmd.Flags().StringVar(&title, "title", "", "title (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "description")

	return cmd
}

func newMRListCmd(g *globals) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List merge requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, false, func(s *session) error {
				out := cmd.OutOrStdout()
				mrs := s.repo.MergeRequests(repo.MergeRequestStatus(status))
				if len(mrs) == 0 {
					fmt.Fprintln(out, "no merge requests")
					return nil
				}
				for _, mr := range mrs {
					fmt.Fprintf(out, "%s  %-6s  %s -> %s  %s\n", mr.ID, mr.Status, mr.SourceBranch, mr.TargetBranch, mr.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only list requests with this status (open, closed, merged)")
	return cmd
}

func newMRShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a merge request with its commits and reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, false, func(s *session) error {
				mr, err := s.repo.MergeRequest(args[0])
				if err != nil {
					return err
				}
				commits, err := s.repo.MergeRequestCommits(mr.ID)
				if err != nil {
					return err
				}
				printMergeRequest(cmd.OutOrStdout(), mr, commits)
				return nil
			})
		},
	}
}

func printMergeRequest(out io.Writer, mr *repo.MergeRequest, commits []*repo.Commit) {
	fmt.Fprintf(out, "merge request %s [%s]\n", mr.ID, mr.Status)
	fmt.Fprintf(out, "Title:   %s\n", mr.Title)
	fmt.Fprintf(out, "Author:  %s\n", mr.Author)
	fmt.Fprintf(out, "Branches: %s -> %s\n", mr.SourceBranch, mr.TargetBranch)
	fmt.Fprintf(out, "Created: %s\n", mr.CreatedAt.Format("2006-01-02 15:04:05"))
	if mr.MergeCommit != "" {
		fmt.Fprintf(out, "Merged:  %s\n", mr.MergeCommit.Short())
	}
	if mr.Description != "" {
		fmt.Fprintf(out, "\n%s\n", mr.Description)
	}
	fmt.Fprintf(out, "\ncommits (%d):\n", len(commits))
	for _, c := range commits {
		fmt.Fprintf(out, "  %s %s\n", c.ID.Short(), c.Summary())
	}
	if len(mr.Reviews) > 0 {
		fmt.Fprintf(out, "\nreviews (%d approval(s)):\n", mr.Approvals())
		for _, rv := range mr.Reviews {
			fmt.Fprintf(out, "  %s %s", rv.Verdict, rv.Author)
			if rv.Body != "" {
				fmt.Fprintf(out, ": %s", rv.Body)
			}
			fmt.Fprintln(out)
		}
	}
}

func newMRStatusCmd(g *globals, use string, status repo.MergeRequestStatus, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, true, func(s *session) error {
				out := cmd.OutOrStdout()
				mr, err := s.repo.UpdateMergeRequestStatus(args[0], status)
				if err != nil {
					var mce *repo.MergeConflictError
					if errors.As(err, &mce) {
						printConflicts(out, mce)
					}
					return err
				}
				if mr.MergeCommit != "" {
					fmt.Fprintf(out, "merge request %s %s at %s\n", mr.ID, mr.Status, mr.MergeCommit.Short())
				} else {
					fmt.Fprintf(out, "merge request %s %s\n", mr.ID, mr.Status)
				}
				return nil
			})
		},
	}
}

func newMRReviewCmd(g *globals) *cobra.Command {
	var (
		approve        bool
		requestChanges bool
		body           string
	)

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve, request changes on, or comment on a merge request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve && requestChanges {
				return fmt.Errorf("--approve and --request-changes are mutually exclusive")
			}
			verdict := repo.ReviewComment
			switch {
			case approve:
				verdict = repo.ReviewApprove
			case requestChanges:
				verdict = repo.ReviewRequestChanges
			}
			return withRepo(cmd, g, true, func(s *session) error {
				mr, err := s.repo.ReviewMergeRequest(args[0], repo.Review{
					Author:  s.author(),
					Verdict: verdict,
					Body:    body,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d review(s), %d approval(s))\n", mr.ID, verdict, len(mr.Reviews), mr.Approvals())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "approve the request")
	cmd.Flags().BoolVar(&requestChanges, "request-changes", false, "request changes")
	cmd.Flags().StringVarP(&body, "message", "m", "", "review text (required for comments)")

	return cmd
}
