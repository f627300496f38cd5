package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/odvcencio/solvc/pkg/object"
)

func newVerifyCmd(g *globals) *cobra.Command {
	var (
		commit      string
		allowedKeys string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check object reachability, or a commit's SSH signature with --commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd, g, false, func(s *session) error {
				out := cmd.OutOrStdout()
				if commit == "" {
					res, err := s.repo.Verify()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "ok: verified %d reachable object(s)\n", len(res.Found))
					return nil
				}

				var allowed []ssh.PublicKey
				if allowedKeys != "" {
					keys, err := loadAllowedKeys(allowedKeys)
					if err != nil {
						return err
					}
					allowed = keys
				}
				id := object.Hash(commit)
				if err := s.repo.VerifyCommit(id, newSSHCommitVerifier(allowed)); err != nil {
					return err
				}
				fmt.Fprintf(out, "ok: good signature on %s\n", id.Short())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&commit, "commit", "", "verify the signature of this commit")
	cmd.Flags().StringVar(&allowedKeys, "allowed-keys", "", "authorized_keys file listing trusted signers")

	return cmd
}
