package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"livegrid/internal/client"

	"github.com/spf13/cobra"
)

func newLoginCmd(root *rootOptions) *cobra.Command {
	var redirectURL, uid, token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Stores an SSO session for result submission",
		Long: `Stores the uid and token the SSO callback appends to its redirect.
Pass the URL the browser landed on with --redirect-url, or the two values
with --uid and --token. Without flags the login URL is printed and the
redirect URL is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := root.sessionStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if session, ok, err := store.Authenticated(time.Now()); err == nil && ok && redirectURL == "" && uid == "" {
				fmt.Fprintf(out, "already logged in as %s\n", session.UID)
				return nil
			}

			var session client.Session
			switch {
			case uid != "" || token != "":
				if uid == "" || token == "" {
					return fmt.Errorf("--uid and --token go together")
				}
				session = client.Session{UID: uid, Token: token}
			default:
				if redirectURL == "" {
					fmt.Fprintf(out, "open %s in a browser, then paste the URL you were sent back to:\n", root.apiClient().LoginURL())
					line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
					if err != nil && line == "" {
						return fmt.Errorf("read redirect url: %w", err)
					}
					redirectURL = strings.TrimSpace(line)
				}
				if session, err = client.SessionFromRedirect(redirectURL); err != nil {
					return err
				}
			}

			if err := store.Save(session); err != nil {
				return err
			}
			fmt.Fprintf(out, "logged in as %s\n", session.UID)
			return nil
		},
	}

	cmd.Flags().StringVar(&redirectURL, "redirect-url", "", "URL the SSO callback redirected to")
	cmd.Flags().StringVar(&uid, "uid", "", "SSO uid")
	cmd.Flags().StringVar(&token, "token", "", "SSO token")
	return cmd
}

func newLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Removes the stored SSO session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := root.sessionStore()
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}
