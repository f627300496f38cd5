package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd(g *globals) *cobra.Command {
	var deleteName string

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if deleteName != "" {
				return withRepo(cmd, g, true, func(s *session) error {
					if err := s.repo.DeleteBranch(deleteName); err != nil {
						return err
					}
					fmt.Fprintf(out, "deleted branch %s\n", deleteName)
					return nil
				})
			}

			if len(args) == 0 {
				return withRepo(cmd, g, false, func(s *session) error {
					current := s.repo.CurrentBranch()
					for _, b := range s.repo.ListBranches() {
						marker := "  "
						if b.Name == current {
							marker = "* "
						}
						fmt.Fprintf(out, "%s%s %s\n", marker, b.Name, b.Head.Short())
					}
					return nil
				})
			}

			return withRepo(cmd, g, true, func(s *session) error {
				from := ""
				if len(args) == 2 {
					from = args[1]
				}
				b, err := s.repo.CreateBranch(args[0], from)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created branch %s at %s\n", b.Name, b.Head.Short())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&deleteName, "delete", "d", "", "delete the named branch")
	return cmd
}

func newSwitchCmd(g *globals) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "switch <branch>",
		Short: "Switch branches and update the worktree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withRepo(cmd, g, true, func(s *session) error {
				if create {
					if _, err := s.repo.CreateBranch(name, ""); err != nil {
						return err
					}
				}
				if err := s.repo.SwitchBranch(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "switched to branch %s\n", name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&create, "create", "c", false, "create the branch at the current head first")
	return cmd
}
