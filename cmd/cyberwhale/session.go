// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/cyberwhale/cyberwhale/internal/client"
	"github.com/cyberwhale/cyberwhale/internal/logging"
)

const defaultServerURL = "http://localhost:8080"

type sessionFlags struct {
	server    string
	tokenFile string
}

// NewSessionCmd creates the session subcommand group.
func NewSessionCmd() *cobra.Command {
	flags := &sessionFlags{}
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Log in to a running server",
		Long: `Manage a login session against a running CyberWhale server. The
bearer token is kept in XDG_STATE_HOME/cyberwhale/session.token.`,
	}
	cmd.PersistentFlags().StringVar(&flags.server, "server", defaultServerURL, "server base URL")
	cmd.PersistentFlags().StringVar(&flags.tokenFile, "token-file", "", "token file (default: XDG_STATE_HOME/cyberwhale/session.token)")

	cmd.AddCommand(newSessionLoginCmd(flags))
	cmd.AddCommand(newSessionLogoutCmd(flags))
	cmd.AddCommand(newSessionWhoamiCmd(flags))
	return cmd
}

func (f *sessionFlags) open(cmd *cobra.Command) (*client.Session, error) {
	backend, err := client.NewHTTPBackend(f.server, nil)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup("cyberwhale-cli", version, "text", cmd.ErrOrStderr()).
		With("server", f.server)
	return client.NewSession(backend, client.NewFileTokenStore(f.tokenFile), client.WithLogger(logger))
}

func newSessionLoginCmd(flags *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login LOGIN",
		Short: "Log in with a username or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := flags.open(cmd)
			if err != nil {
				return err
			}
			password, err := promptPassword(cmd.OutOrStdout(), "Password: ")
			if err != nil {
				return err
			}
			user, err := session.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			cmd.Printf("Logged in as %s\n", user.Username)
			return nil
		},
	}
}

func newSessionLogoutCmd(flags *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored session and forget its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := flags.open(cmd)
			if err != nil {
				return err
			}
			if _, err := session.Start(cmd.Context()); err != nil {
				cmd.PrintErrf("warning: server unreachable, forgetting token locally: %v\n", err)
			}
			session.Logout(cmd.Context())
			cmd.Println("Logged out")
			return nil
		},
	}
}

func newSessionWhoamiCmd(flags *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := flags.open(cmd)
			if err != nil {
				return err
			}
			user, err := session.Start(cmd.Context())
			if err != nil {
				return err
			}
			if user == nil {
				cmd.Println("Not logged in")
				return nil
			}
			verified := "unverified"
			if user.EmailVerified {
				verified = "verified"
			}
			cmd.Printf("%s <%s> (%s)\n", user.Username, user.Email, verified)
			return nil
		},
	}
}
