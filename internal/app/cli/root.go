// Package cli is the roadmapctl command tree: seeding facilities, creating
// users, and granting facility memberships directly against MongoDB.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	MongoURI string
	Database string
	Verbose  bool
	Format   string // "json" | "text"

	// DB, when set, is used instead of connecting to MongoURI.
	DB *mongo.Database
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for roadmapctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// NewRootCommandWithDB creates the root command bound to an open database.
func NewRootCommandWithDB(db *mongo.Database) *cobra.Command {
	return newRootCommand(&RootOptions{DB: db})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roadmapctl",
		Short: "roadmapctl - administer the VPC roadmap facility data",
		Long: `Administer facilities, users and facility memberships for the VPC
roadmap service. Commands talk to MongoDB directly; the server picks the
changes up on its next membership refresh.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error once
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.MongoURI, "mongo-uri", envOr("VPCROADMAP_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", envOr("VPCROADMAP_MONGO_DATABASE", "vpc_roadmap"), "MongoDB database name")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewFacilitiesCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewMembersCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// openDB returns the database to work on and a func that releases it.
func openDB(ctx context.Context, opts *RootOptions) (*mongo.Database, func(), error) {
	if opts.DB != nil {
		return opts.DB, func() {}, nil
	}
	cctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(opts.MongoURI).SetAppName("roadmapctl"))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "connect mongo", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, WrapExitError(ExitCommandError, "ping mongo", err)
	}
	release := func() { _ = client.Disconnect(context.Background()) }
	return client.Database(opts.Database), release, nil
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
