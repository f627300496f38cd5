package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAddCmd(g *globals) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "add [paths...]",
		Short: "Stage worktree content",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("nothing specified; use -A to stage every change")
			}
			return withRepo(cmd, g, true, func(s *session) error {
				if all {
					paths, err := s.repo.AddAll()
					if err != nil {
						return err
					}
					for _, p := range paths {
						fmt.Fprintf(cmd.OutOrStdout(), "staged %s\n", p)
					}
					return nil
				}
				paths, err := s.relPaths(g, args)
				if err != nil {
					return err
				}
				return s.repo.Add(paths...)
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "A", false, "stage every modified, deleted and untracked path")
	return cmd
}

func newRmCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <paths...>",
		Short: "Remove files from the worktree and stage their deletion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, true, func(s *session) error {
				paths, err := s.relPaths(g, args)
				if err != nil {
					return err
				}
				if err := s.repo.Remove(paths...); err != nil {
					return err
				}
				for _, p := range paths {
					fmt.Fprintf(cmd.OutOrStdout(), "rm %s\n", p)
				}
				return nil
			})
		},
	}
}

func newUnstageCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "unstage <paths...>",
		Short: "Drop staged changes without touching the worktree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, true, func(s *session) error {
				paths, err := s.relPaths(g, args)
				if err != nil {
					return err
				}
				return s.repo.Unstage(paths...)
			})
		},
	}
}
