package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dalemusser/vpcroadmap/internal/app/store/audit"
	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	facilitymemberstore "github.com/dalemusser/vpcroadmap/internal/app/store/facilitymembers"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auditlog"
	"github.com/dalemusser/vpcroadmap/internal/app/system/limits"
	"github.com/dalemusser/vpcroadmap/internal/app/system/normalize"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/dalemusser/vpcroadmap/internal/app/system/txn"
	"github.com/dalemusser/vpcroadmap/internal/domain/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout read by "facilities seed".
//
//	facilities:
//	  - code: WLK
//	    name: Walker
//	    city: Walker
//	    state: MI
//	    status: active
//	    maturity_score: 2.5
//	    time_zone: America/Detroit
type SeedFile struct {
	Facilities []SeedFacility `yaml:"facilities"`
}

// SeedFacility is one facility entry of a seed file.
type SeedFacility struct {
	Code          string  `yaml:"code" json:"code"`
	Name          string  `yaml:"name" json:"name"`
	City          string  `yaml:"city" json:"city"`
	State         string  `yaml:"state" json:"state"`
	Status        string  `yaml:"status" json:"status"`
	MaturityScore float64 `yaml:"maturity_score" json:"maturity_score"`
	TimeZone      string  `yaml:"time_zone" json:"time_zone"`
	Description   string  `yaml:"description" json:"description"`
}

// SeedResult reports what a seed run changed.
type SeedResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// ParseSeedFile decodes a seed file. Unknown keys are rejected so typos do
// not silently drop fields.
func ParseSeedFile(r io.Reader) (SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		if errors.Is(err, io.EOF) {
			return SeedFile{}, errors.New("seed file is empty")
		}
		return SeedFile{}, err
	}
	seen := make(map[string]bool, len(sf.Facilities))
	for i, f := range sf.Facilities {
		code := normalize.FacilityCode(f.Code)
		if !normalize.ValidFacilityCode(code) {
			return SeedFile{}, fmt.Errorf("facilities[%d]: invalid code %q", i, f.Code)
		}
		if seen[code] {
			return SeedFile{}, fmt.Errorf("facilities[%d]: duplicate code %s", i, code)
		}
		seen[code] = true
	}
	return sf, nil
}

// NewFacilitiesCommand creates the facilities command group.
func NewFacilitiesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facilities",
		Short: "Seed, list and delete facilities",
	}
	cmd.AddCommand(newFacilitiesSeedCommand(rootOpts))
	cmd.AddCommand(newFacilitiesListCommand(rootOpts))
	cmd.AddCommand(newFacilitiesDeleteCommand(rootOpts))
	return cmd
}

func newFacilitiesSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or update facilities from a YAML file",
		Long: `Create or update facilities from a YAML file.

Facilities are matched by code. Existing facilities have every other field
replaced with the file's values; codes themselves never change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFacilitiesSeed(cmd, rootOpts, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runFacilitiesSeed(cmd *cobra.Command, opts *RootOptions, path string) error {
	out := newFormatter(opts, cmd)

	fh, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open seed file", err)
	}
	defer fh.Close()

	sf, err := ParseSeedFile(io.LimitReader(fh, limits.MaxSeedFileSize))
	if err != nil {
		return WrapExitError(ExitFailure, "parse seed file", err)
	}
	out.VerboseLog("read %d facilities from %s", len(sf.Facilities), path)

	db, release, err := openDB(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer release()

	// Seed events go to the audit collection only; the command's own output
	// already reports what changed.
	auditLog := auditlog.New(audit.New(db), zap.NewNop(), auditlog.Config{Admin: auditlog.ModeDB})
	res, err := seedFacilities(cmd.Context(), facilitystore.New(db), auditLog, sf)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("created %d, updated %d facilities\n", len(res.Created), len(res.Updated))
	return out.Success(res, text)
}

func seedFacilities(ctx context.Context, store *facilitystore.Store, auditLog *auditlog.Logger, sf SeedFile) (SeedResult, error) {
	res := SeedResult{Created: []string{}, Updated: []string{}}
	for _, f := range sf.Facilities {
		code := normalize.FacilityCode(f.Code)

		cctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		existing, err := store.GetByCode(cctx, code)
		switch {
		case errors.Is(err, facilitystore.ErrNotFound):
			var created models.Facility
			created, err = store.Create(cctx, models.Facility{
				Code:          code,
				Name:          f.Name,
				City:          f.City,
				State:         f.State,
				Status:        f.Status,
				MaturityScore: f.MaturityScore,
				TimeZone:      f.TimeZone,
				Description:   f.Description,
			})
			if err == nil {
				res.Created = append(res.Created, code)
				auditLog.FacilitySeeded(cctx, created.ID, code, true)
			}
		case err == nil:
			status := f.Status
			if status == "" {
				status = existing.Status
			}
			_, err = store.Update(cctx, existing.ID, facilitystore.Patch{
				Name:          &f.Name,
				City:          &f.City,
				State:         &f.State,
				Status:        &status,
				MaturityScore: &f.MaturityScore,
				TimeZone:      &f.TimeZone,
				Description:   &f.Description,
			})
			if err == nil {
				res.Updated = append(res.Updated, code)
				auditLog.FacilitySeeded(cctx, existing.ID, code, false)
			}
		}
		cancel()
		if err != nil {
			return res, WrapExitError(ExitFailure, "seed facility "+code, err)
		}
	}
	return res, nil
}

func newFacilitiesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all facilities by name",
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
			fs, err := facilitystore.New(db).List(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "list facilities", err)
			}

			rows := make([]SeedFacility, 0, len(fs))
			var b strings.Builder
			tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME\tSTATUS\tMATURITY\tTIME ZONE")
			for _, f := range fs {
				rows = append(rows, SeedFacility{
					Code:          f.Code,
					Name:          f.Name,
					City:          f.City,
					State:         f.State,
					Status:        f.Status,
					MaturityScore: f.MaturityScore,
					TimeZone:      f.TimeZone,
					Description:   f.Description,
				})
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n", f.Code, f.Name, f.Status, f.MaturityScore, f.TimeZone)
			}
			_ = tw.Flush()
			return out.Success(rows, b.String())
		},
	}
}

func newFacilitiesDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var code string
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a facility and all of its memberships",
		Long: `Delete a facility and all of its memberships.

Signed-in users holding the facility keep it until their next membership
refresh. The deletion cannot be undone, so --yes is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitFailure, "refusing to delete without --yes")
			}
			out := newFormatter(rootOpts, cmd)
			db, release, err := openDB(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer release()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeouts.Long())
			defer cancel()

			facilities := facilitystore.New(db)
			norm := normalize.FacilityCode(code)
			f, err := facilities.GetByCode(ctx, norm)
			if errors.Is(err, facilitystore.ErrNotFound) {
				return WrapExitError(ExitFailure, "delete facility "+norm, err)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "delete facility "+norm, err)
			}

			members := facilitymemberstore.New(db)
			var removed int64
			err = txn.Run(ctx, db, nil, func(ctx context.Context) error {
				var err error
				if removed, err = members.DeleteByFacility(ctx, f.ID); err != nil {
					return err
				}
				_, err = facilities.Delete(ctx, f.ID)
				return err
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "delete facility "+norm, err)
			}

			auditLog := auditlog.New(audit.New(db), zap.NewNop(), auditlog.Config{Admin: auditlog.ModeDB})
			auditLog.FacilityDeleted(ctx, f.ID, f.Code, removed)

			return out.Success(map[string]any{"code": f.Code, "memberships_removed": removed},
				fmt.Sprintf("deleted %s and %d memberships\n", f.Code, removed))
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "facility code")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
