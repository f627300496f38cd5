package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/workspace"
)

func newInitCmd(g *globals) *cobra.Command {
	var (
		branch   string
		backend  string
		name     string
		email    string
		noCommit bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a workspace and commit the files already present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := workspace.DefaultConfig()
			if branch != "" {
				cfg.Core.DefaultBranch = branch
			}
			if backend != "" {
				cfg.Storage.Backend = backend
			}
			cfg.User.Name = name
			cfg.User.Email = email

			log := newLogger(cmd, g)
			ws, err := workspace.Init(g.dir, cfg, workspace.WithLogger(log))
			if err != nil {
				return err
			}
			defer ws.Close()
			applyLogLevel(log, g, cfg)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "initialized empty solvc workspace in %s\n", ws.Dir)
			if noCommit {
				return nil
			}

			r, err := ws.Load()
			if err != nil {
				return err
			}
			s := &session{ws: ws, repo: r, log: log}
			paths, err := r.Worktree().List()
			if err != nil {
				return err
			}
			files := make(map[string][]byte, len(paths))
			for _, p := range paths {
				data, err := r.Worktree().ReadFile(p)
				if err != nil {
					return err
				}
				files[p] = data
			}
			c, err := r.Initialize(files, s.author())
			if err != nil {
				return err
			}
			if err := ws.Save(r); err != nil {
				return err
			}
			fmt.Fprintf(out, "[%s %s] %s (%d file(s))\n", r.CurrentBranch(), c.ID.Short(), c.Summary(), len(files))
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "name of the initial branch (default main)")
	cmd.Flags().StringVar(&backend, "backend", "", "object storage backend: disk or badger")
	cmd.Flags().StringVar(&name, "name", "", "user name recorded in config.toml")
	cmd.Flags().StringVar(&email, "email", "", "user email recorded in config.toml")
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "do not create the initial commit")

	return cmd
}
