package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	facilitymemberstore "github.com/dalemusser/vpcroadmap/internal/app/store/facilitymembers"
	userstore "github.com/dalemusser/vpcroadmap/internal/app/store/users"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/dalemusser/vpcroadmap/internal/domain/models"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

// NewMembersCommand creates the members command group.
func NewMembersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Grant, revoke and list facility memberships",
	}
	cmd.AddCommand(newMembersGrantCommand(rootOpts))
	cmd.AddCommand(newMembersRevokeCommand(rootOpts))
	cmd.AddCommand(newMembersListCommand(rootOpts))
	return cmd
}

// lookupPair resolves a login id and a facility code to their documents.
func lookupPair(ctx context.Context, db *mongo.Database, login, code string) (models.User, models.Facility, error) {
	u, err := userstore.New(db).GetByLoginID(ctx, login)
	if errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, models.Facility{}, WrapExitError(ExitFailure, "user "+login, err)
	}
	if err != nil {
		return models.User{}, models.Facility{}, WrapExitError(ExitCommandError, "lookup user", err)
	}
	f, err := facilitystore.New(db).GetByCode(ctx, code)
	if errors.Is(err, facilitystore.ErrNotFound) {
		return models.User{}, models.Facility{}, WrapExitError(ExitFailure, "facility "+code, err)
	}
	if err != nil {
		return models.User{}, models.Facility{}, WrapExitError(ExitCommandError, "lookup facility", err)
	}
	return u, f, nil
}

func newMembersGrantCommand(rootOpts *RootOptions) *cobra.Command {
	var login, code, role string
	var primary bool
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant a user a role in a facility (updates an existing membership)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			db, release, err := openDB(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer release()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Long())
			defer cancel()
			u, f, err := lookupPair(ctx, db, login, code)
			if err != nil {
				return err
			}
			m, err := facilitymemberstore.New(db).Grant(ctx, u.ID, f.ID, role, primary)
			if errors.Is(err, facilitymemberstore.ErrBadRole) {
				return WrapExitError(ExitFailure, "grant", err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "grant", err)
			}
			text := fmt.Sprintf("%s is %s of %s", u.LoginID, m.Role, f.Code)
			if m.IsPrimary {
				text += " (primary)"
			}
			return out.Success(m, text+"\n")
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "login id of the user")
	cmd.Flags().StringVar(&code, "facility", "", "facility code")
	cmd.Flags().StringVar(&role, "role", "viewer", "viewer | editor | facility_admin")
	cmd.Flags().BoolVar(&primary, "primary", false, "make this the user's primary facility")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("facility")
	return cmd
}

func newMembersRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	var login, code string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Remove a user's membership in a facility",
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
			u, f, err := lookupPair(ctx, db, login, code)
			if err != nil {
				return err
			}
			n, err := facilitymemberstore.New(db).Revoke(ctx, u.ID, f.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "revoke", err)
			}
			if n == 0 {
				return WrapExitError(ExitFailure, "revoke", facilitymemberstore.ErrNotFound)
			}
			return out.Success(map[string]string{"login_id": u.LoginID, "facility": f.Code},
				fmt.Sprintf("%s removed from %s\n", u.LoginID, f.Code))
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "login id of the user")
	cmd.Flags().StringVar(&code, "facility", "", "facility code")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("facility")
	return cmd
}

func newMembersListCommand(rootOpts *RootOptions) *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's memberships in the order the server sees them",
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
			u, err := userstore.New(db).GetByLoginID(ctx, login)
			if errors.Is(err, userstore.ErrNotFound) {
				return WrapExitError(ExitFailure, "user "+login, err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "lookup user", err)
			}
			ms, err := facilitymemberstore.New(db).ListForUser(ctx, u.ID.Hex())
			if err != nil {
				return WrapExitError(ExitCommandError, "list memberships", err)
			}

			var b strings.Builder
			tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME\tROLE\tPRIMARY")
			for _, m := range ms {
				primary := ""
				if m.IsPrimary {
					primary = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Facility.Code, m.Facility.Name, m.Role, primary)
			}
			_ = tw.Flush()
			return out.Success(ms, b.String())
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "login id of the user")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}
