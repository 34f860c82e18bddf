package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/slotwise/slotwise/internal/google"
	"github.com/slotwise/slotwise/internal/store"
)

func newAuthCmd() *cobra.Command {
	var (
		account string
		dbPath  string
		revoke  bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize slotwise to access your Google account",
		Long: `Run the Google OAuth consent flow for a named account.

Prints the consent URL, waits for the authorization code to be pasted
back, and caches the resulting token. By default the token is stored in
the user cache directory; with --db it is persisted in the SQLite
database the serve command uses.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET to be set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if revoke {
				if dbPath != "" {
					st, err := store.New(dbPath)
					if err != nil {
						return fmt.Errorf("failed to open store: %w", err)
					}
					defer st.Close()
					if err := st.DeleteToken(cmd.Context(), account); err != nil {
						return fmt.Errorf("failed to delete token: %w", err)
					}
				} else if err := google.RemoveTokenForAccount(account); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token removed for account %q\n", account)
				return nil
			}

			conf := google.GetOAuthConfig()
			if conf.ClientID == "" || conf.ClientSecret == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Open the following URL in your browser:\n\n%s\n\nEnter the authorization code: ", google.GetAuthURL("state"))

			reader := bufio.NewReader(os.Stdin)
			code, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			code = strings.TrimSpace(code)
			if code == "" {
				return fmt.Errorf("no authorization code provided")
			}

			ctx := cmd.Context()

			if dbPath != "" {
				st, err := store.New(dbPath)
				if err != nil {
					return fmt.Errorf("failed to open store: %w", err)
				}
				defer st.Close()

				token, err := google.Exchange(ctx, code)
				if err != nil {
					return err
				}
				rec := &google.TokenRecord{
					AccessToken:  token.AccessToken,
					RefreshToken: token.RefreshToken,
					Expiry:       token.Expiry,
				}
				if err := st.SaveToken(ctx, account, rec); err != nil {
					return fmt.Errorf("failed to persist token: %w", err)
				}
			} else if err := google.SaveTokenForAccount(ctx, account, code); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token saved for account %q\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite database. When set, the token is stored there instead of the file cache.")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "Remove the stored token for the account instead of authorizing")

	return cmd
}
