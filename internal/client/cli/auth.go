package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/fluma/internal/api"
	"github.com/dmitrijs2005/fluma/internal/client/client"
	"github.com/dmitrijs2005/fluma/internal/client/services"
	"github.com/dmitrijs2005/fluma/internal/common"
)

func newSignupCmd(opts *options, factory ServiceFactory) *cobra.Command {
	var nickname string

	cmd := &cobra.Command{
		Use:   "signup [username]",
		Short: "Create a new account",
		Long:  `Create a new account on the server. The password is read from the terminal.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userName, password, err := readCredentials(cmd, args)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			return withService(cmd, opts, factory, func(ctx context.Context, svc services.AuthService) error {
				resp, err := svc.Signup(ctx, userName, password, nickname)
				if err != nil {
					return fmt.Errorf("signup: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed up %s (%s)\n", resp.Username, resp.Authority)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&nickname, "nickname", "", "display name, defaults to the user name")

	return cmd
}

func newLoginCmd(opts *options, factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the token pair",
		Long:  `Log in with user name and password. The issued token pair is stored in the local session.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userName, password, err := readCredentials(cmd, args)
			if err != nil {
				return err
			}
			defer common.WipeByteArray(password)

			return withService(cmd, opts, factory, func(ctx context.Context, svc services.AuthService) error {
				resp, err := svc.Login(ctx, userName, password)
				if err != nil {
					return fmt.Errorf("login: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", userName)
				printExpiry(cmd, resp)
				return nil
			})
		},
	}
}

func newReissueCmd(opts *options, factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "reissue",
		Short: "Exchange the stored token pair for a new one",
		Long:  `Send the stored access and refresh tokens to the server and store the new pair it returns.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, factory, func(ctx context.Context, svc services.AuthService) error {
				resp, err := svc.Reissue(ctx)
				if err != nil {
					return fmt.Errorf("reissue: %w", hint(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Tokens reissued")
				printExpiry(cmd, resp)
				return nil
			})
		},
	}
}

func newLogoutCmd(opts *options, factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, factory, func(ctx context.Context, svc services.AuthService) error {
				if err := svc.Logout(ctx); err != nil {
					return fmt.Errorf("logout: %w", hint(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(opts *options, factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, factory, func(ctx context.Context, svc services.AuthService) error {
				s, err := svc.Session(ctx)
				if err != nil {
					return hint(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), s.UserName)
				return nil
			})
		},
	}
}

func newPingCmd(opts *options, factory ServiceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, factory, func(ctx context.Context, svc services.AuthService) error {
				if err := svc.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Server is reachable")
				return nil
			})
		},
	}
}

// readCredentials takes the user name from args or prompts for it, then
// prompts for the password.
func readCredentials(cmd *cobra.Command, args []string) (string, []byte, error) {
	var userName string
	if len(args) > 0 {
		userName = args[0]
	} else {
		var err error
		userName, err = getSimpleText(bufio.NewReader(cmd.InOrStdin()), "Enter user name", cmd.OutOrStdout())
		if err != nil {
			return "", nil, err
		}
	}

	password, err := getPassword(cmd.OutOrStdout())
	if err != nil {
		return "", nil, err
	}
	return userName, password, nil
}

func printExpiry(cmd *cobra.Command, resp *api.TokenResponse) {
	if resp.AccessTokenExpiresAt.IsZero() {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Access token expires at %s\n",
		resp.AccessTokenExpiresAt.Local().Format(time.RFC3339))
}

// hint adds the next step to errors that mean the session is gone.
func hint(err error) error {
	switch {
	case errors.Is(err, client.ErrNotLoggedIn),
		errors.Is(err, common.ErrLoggedOut),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return fmt.Errorf("%w, run \"fluma login\"", err)
	default:
		return err
	}
}
