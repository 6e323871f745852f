package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/session"
	"github.com/Iron-Ham/git2doc/internal/storage"
)

func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in, sign up and manage the current session",
	}
	authCmd.AddCommand(newLoginCmd())
	authCmd.AddCommand(newSignupCmd())
	authCmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE:  withApp(runLogout),
	})
	authCmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE:  withApp(runWhoami),
	})
	return authCmd
}

type loginOptions struct {
	phone bool
}

func newLoginCmd() *cobra.Command {
	opts := &loginOptions{}
	loginCmd := &cobra.Command{
		Use:   "login <email-or-phone>",
		Short: "Log in with an email or phone number",
		Long: `Log in with an email address or phone number and a password.

The password is prompted for without echo on a terminal, or read as a
single line from stdin otherwise.

With --phone the account is identified by phone number alone and no
password is asked for. This only works for accounts registered by phone.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return runLogin(cmd, a, args, opts)
		}),
	}
	loginCmd.Flags().BoolVar(&opts.phone, "phone", false, "log in by phone number without a password")
	return loginCmd
}

func runLogin(cmd *cobra.Command, a *app, args []string, opts *loginOptions) error {
	ctx := cmd.Context()
	var (
		id  *session.Identity
		err error
	)
	if opts.phone {
		id, err = a.session.LoginWithPhone(ctx, args[0])
	} else {
		var password string
		password, err = readSecret(cmd, "Password: ")
		if err != nil {
			return err
		}
		id, err = a.session.Login(ctx, args[0], password)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", id.FullName, id.Contact())
	return nil
}

type signupOptions struct {
	name  string
	email string
	phone string
}

func newSignupCmd() *cobra.Command {
	opts := &signupOptions{}
	signupCmd := &cobra.Command{
		Use:   "signup --name <full name> (--email <email> | --phone <phone>)",
		Short: "Create an account and log in",
		Long: `Create an account and log in.

Accounts registered with --email need a password, prompted for as with
login. Accounts registered with --phone have no password and log in with
'git2doc auth login --phone'.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return runSignup(cmd, a, opts)
		}),
	}
	signupCmd.Flags().StringVar(&opts.name, "name", "", "full name")
	signupCmd.Flags().StringVar(&opts.email, "email", "", "email address")
	signupCmd.Flags().StringVar(&opts.phone, "phone", "", "phone number")
	signupCmd.MarkFlagsMutuallyExclusive("email", "phone")
	signupCmd.MarkFlagsOneRequired("email", "phone")
	return signupCmd
}

func runSignup(cmd *cobra.Command, a *app, opts *signupOptions) error {
	ctx := cmd.Context()
	var (
		id  *session.Identity
		err error
	)
	if opts.phone != "" {
		id, err = a.session.SignupWithPhone(ctx, opts.name, opts.phone)
	} else {
		var password string
		password, err = readSecret(cmd, "Choose a password: ")
		if err != nil {
			return err
		}
		id, err = a.session.Signup(ctx, opts.name, opts.email, password)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s. You are logged in as %s.\n", id.FullName, id.Contact())
	return nil
}

func runLogout(cmd *cobra.Command, a *app, _ []string) error {
	had, err := hasToken(cmd.Context(), a.kv)
	if err != nil {
		return err
	}
	a.session.Logout(cmd.Context())

	if had {
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
	}
	return nil
}

func runWhoami(cmd *cobra.Command, a *app, _ []string) error {
	id, err := a.requireSession(cmd.Context())
	if err != nil {
		return err
	}
	return a.render.identity(id)
}

func hasToken(ctx context.Context, kv storage.Store) (bool, error) {
	_, err := kv.Load(ctx, api.TokenKey)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to read session: %w", err)
	}
}
