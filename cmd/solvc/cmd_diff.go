package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/diff"
	"github.com/odvcencio/solvc/pkg/object"
	"github.com/odvcencio/solvc/pkg/repo"
)

func newDiffCmd(g *globals) *cobra.Command {
	var (
		cached bool
		commit string
		stat   bool
	)

	cmd := &cobra.Command{
		Use:   "diff [paths...]",
		Short: "Show line changes",
		Long: `Show line changes in unified format.

Without flags the worktree is compared with the staged content. --cached
compares the staged content with the branch head, and --commit compares a
commit with its first parent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cached && commit != "" {
				return fmt.Errorf("--cached and --commit are mutually exclusive")
			}
			return withRepo(cmd, g, false, func(s *session) error {
				paths, err := s.relPaths(g, args)
				if err != nil {
					return err
				}

				var get func(p string) (*diff.FileDiff, error)
				switch {
				case commit != "":
					id := object.Hash(commit)
					if len(paths) == 0 {
						if paths, err = commitPaths(s.repo, id); err != nil {
							return err
						}
					}
					get = func(p string) (*diff.FileDiff, error) { return s.repo.Diff(p, id) }
				case cached:
					if len(paths) == 0 {
						for _, e := range s.repo.Staged() {
							paths = append(paths, e.Path)
						}
					}
					get = func(p string) (*diff.FileDiff, error) { return s.repo.Diff(p, "") }
				default:
					if len(paths) == 0 {
						if paths, err = worktreeChanges(s.repo); err != nil {
							return err
						}
					}
					get = s.repo.DiffWorktree
				}

				out := cmd.OutOrStdout()
				for _, p := range paths {
					fd, err := get(p)
					if err != nil {
						return err
					}
					if fd == nil || fd.Empty() {
						continue
					}
					printFileDiff(out, fd, stat)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "compare staged content with the branch head")
	cmd.Flags().StringVar(&commit, "commit", "", "show the changes introduced by this commit")
	cmd.Flags().BoolVar(&stat, "stat", false, "print only added/removed line counts")

	return cmd
}

func commitPaths(r *repo.Repository, id object.Hash) ([]string, error) {
	c, err := r.GetCommit(id)
	if err != nil {
		return nil, err
	}
	var parent object.Hash
	if len(c.ParentIDs) > 0 {
		parent = c.ParentIDs[0]
	}
	changes, err := r.DiffCommits(parent, id)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(changes))
	for i, ch := range changes {
		paths[i] = ch.Path
	}
	return paths, nil
}

func worktreeChanges(r *repo.Repository) ([]string, error) {
	entries, err := r.Status()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Worktree == repo.WorktreeModified || e.Worktree == repo.WorktreeDeleted {
			paths = append(paths, e.Path)
		}
	}
	return paths, nil
}

func printFileDiff(out io.Writer, fd *diff.FileDiff, stat bool) {
	if !stat {
		fmt.Fprint(out, fd.String())
		return
	}
	added, removed := fd.Stats()
	fmt.Fprintf(out, "%s | +%d -%d\n", fd.Path, added, removed)
}
