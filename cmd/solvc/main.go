package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/object"
	"github.com/odvcencio/solvc/pkg/repo"
	"github.com/odvcencio/solvc/pkg/workspace"
)

const version = "0.1.0-dev"

// globals holds the persistent flags shared by every command.
type globals struct {
	dir     string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "solvc",
		Short:         "Version control for Solidity source trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "run as if started in this directory")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newAddCmd(g))
	root.AddCommand(newRmCmd(g))
	root.AddCommand(newUnstageCmd(g))
	root.AddCommand(newStatusCmd(g))
	root.AddCommand(newCommitCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newDiffCmd(g))
	root.AddCommand(newBranchCmd(g))
	root.AddCommand(newSwitchCmd(g))
	root.AddCommand(newMergeCmd(g))
	root.AddCommand(newMergeRequestCmd(g))
	root.AddCommand(newReflogCmd(g))
	root.AddCommand(newVerifyCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "solvc %s\n", version)
		},
	}
}

func newLogger(cmd *cobra.Command, g *globals) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if g.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// applyLogLevel honours [log] level unless --verbose was given.
func applyLogLevel(log *logrus.Logger, g *globals, cfg *workspace.Config) {
	if !g.verbose {
		log.SetLevel(cfg.LogLevel())
	}
}

// session is an opened workspace with its repository loaded.
type session struct {
	ws   *workspace.Workspace
	repo *repo.Repository
	log  *logrus.Logger
}

// withRepo opens the workspace containing g.dir, loads the repository,
// runs fn and, when save is set and fn succeeded, persists the result.
func withRepo(cmd *cobra.Command, g *globals, save bool, fn func(s *session) error) error {
	log := newLogger(cmd, g)
	ws, err := workspace.Open(g.dir, workspace.WithLogger(log))
	if err != nil {
		return err
	}
	defer ws.Close()
	applyLogLevel(log, g, ws.Config)

	r, err := ws.Load()
	if err != nil {
		return err
	}
	s := &session{ws: ws, repo: r, log: log}
	if err := fn(s); err != nil {
		return err
	}
	if !save {
		return nil
	}
	return ws.Save(r)
}

// author returns the configured user, or $USER when none is set.
func (s *session) author() object.Author {
	a := s.ws.Config.Author()
	if a.Name == "" {
		a.Name = os.Getenv("USER")
		if a.Name == "" {
			a.Name = "unknown"
		}
	}
	return a
}

// relPaths converts command-line paths, relative to g.dir, into
// workspace-relative slash paths.
func (s *session) relPaths(g *globals, args []string) ([]string, error) {
	base, err := filepath.Abs(g.dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		p := a
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		rel, err := filepath.Rel(s.ws.Root, p)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}
