package main

import (
	"fmt"
	"net/mail"

	"github.com/spf13/cobra"

	"github.com/odvcencio/solvc/pkg/object"
)

func newCommitCmd(g *globals) *cobra.Command {
	var (
		message string
		author  string
		sign    bool
		keyPath string
	)

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			var signer object.CommitSigner
			if sign || keyPath != "" {
				s, resolved, err := newSSHCommitSigner(keyPath)
				if err != nil {
					return err
				}
				signer = s
				defer fmt.Fprintf(cmd.ErrOrStderr(), "signed with %s\n", resolved)
			}

			return withRepo(cmd, g, true, func(s *session) error {
				a := s.author()
				if author != "" {
					parsed, err := parseAuthor(author)
					if err != nil {
						return err
					}
					a = parsed
				}
				c, err := s.repo.CommitWithSigner(message, a, signer)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", s.repo.CurrentBranch(), c.ID.Short(), c.Summary())
				for _, ch := range c.Changes {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", ch.Type, ch.Path)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", `override author ("Name <email>")`)
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&keyPath, "key", "", "SSH private key used with --sign (default ~/.ssh/id_ed25519, id_ecdsa, id_rsa)")

	return cmd
}

// parseAuthor accepts "Name <email>" or a bare name.
func parseAuthor(s string) (object.Author, error) {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		if s == "" {
			return object.Author{}, fmt.Errorf("empty author")
		}
		return object.Author{Name: s}, nil
	}
	return object.Author{Name: addr.Name, Email: addr.Address}, nil
}
