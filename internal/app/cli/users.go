package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	userstore "github.com/dalemusser/vpcroadmap/internal/app/store/users"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/dalemusser/vpcroadmap/internal/domain/models"
	"github.com/spf13/cobra"
)

// NewUsersCommand creates the users command group.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create, list and disable users",
	}
	cmd.AddCommand(newUsersCreateCommand(rootOpts))
	cmd.AddCommand(newUsersListCommand(rootOpts))
	cmd.AddCommand(newUsersStatusCommand(rootOpts, "disable", userstore.StatusDisabled))
	cmd.AddCommand(newUsersStatusCommand(rootOpts, "enable", userstore.StatusActive))
	return cmd
}

func newUsersCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var login, name, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user who can sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			db, release, err := openDB(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer release()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Medium())
			defer cancel()
			u, err := userstore.New(db).Create(ctx, models.User{FullName: name, LoginID: login}, password)
			switch {
			case errors.Is(err, userstore.ErrDuplicateLoginID),
				errors.Is(err, userstore.ErrPasswordTooShort),
				errors.Is(err, userstore.ErrLoginIDRequired):
				return WrapExitError(ExitFailure, "create user", err)
			case err != nil:
				return WrapExitError(ExitCommandError, "create user", err)
			}
			return out.Success(u, fmt.Sprintf("created user %s (%s)\n", u.LoginID, u.ID.Hex()))
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "login id")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&password, "password", "", "initial password (at least 8 characters)")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			db, release, err := openDB(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer release()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Medium())
			defer cancel()
			users, err := userstore.New(db).List(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "list users", err)
			}

			var b strings.Builder
			tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LOGIN\tNAME\tSTATUS")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.LoginID, u.FullName, u.Status)
			}
			_ = tw.Flush()
			return out.Success(users, b.String())
		},
	}
}

func newUsersStatusCommand(rootOpts *RootOptions, verb, status string) *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   verb,
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a user's sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			db, release, err := openDB(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer release()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Medium())
			defer cancel()
			users := userstore.New(db)
			u, err := users.GetByLoginID(ctx, login)
			if errors.Is(err, userstore.ErrNotFound) {
				return WrapExitError(ExitFailure, verb+" user", err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, verb+" user", err)
			}
			if err := users.SetStatus(ctx, u.ID, status); err != nil {
				return WrapExitError(ExitCommandError, verb+" user", err)
			}
			return out.Success(map[string]string{"login_id": u.LoginID, "status": status},
				fmt.Sprintf("%s is now %s\n", u.LoginID, status))
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "login id")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}
