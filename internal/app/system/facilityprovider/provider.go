// Package facilityprovider keeps each session's facility.Store populated and
// in step with the facility code in the request path. It seeds the store
// from the user's memberships once, refreshes it periodically, and resolves
// /f/{code} against the memberships, redirecting when access is denied.
package facilityprovider

import (
	"context"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/metrics"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MembershipSource lists a user's memberships joined with their facilities.
type MembershipSource interface {
	ListForUser(ctx context.Context, userID string) ([]facility.Membership, error)
}

// FacilitySource finds a facility by its URL code; (nil, nil) when absent.
type FacilitySource interface {
	FindByCode(ctx context.Context, code string) (*facility.Facility, error)
}

// Options tune a Provider. Zero values are valid.
type Options struct {
	// RefreshInterval re-fetches memberships for a seeded store whose data
	// is older than this. Zero disables periodic refresh.
	RefreshInterval time.Duration
	Metrics         *metrics.Metrics
}

// Provider drives seeding, refresh and URL resolution for facility stores.
type Provider struct {
	members    MembershipSource
	facilities FacilitySource
	log        *zap.Logger
	metrics    *metrics.Metrics
	refresh    time.Duration

	group singleflight.Group
	now   func() time.Time
}

func New(members MembershipSource, facilities FacilitySource, logger *zap.Logger, opts Options) *Provider {
	return &Provider{
		members:    members,
		facilities: facilities,
		log:        logger,
		metrics:    opts.Metrics,
		refresh:    opts.RefreshInterval,
		now:        time.Now,
	}
}

// EnsureSeeded seeds s from userID's memberships unless it already is.
// Concurrent callers for the same key share one fetch. A fetch error leaves
// the store unseeded so a later call tries again.
func (p *Provider) EnsureSeeded(ctx context.Context, key string, s *facility.Store, userID string) error {
	if s.IsInitialized() {
		return nil
	}

	ch := p.group.DoChan("seed:"+key, func() (any, error) {
		if s.IsInitialized() {
			return nil, nil
		}
		s.SetLoading(true)
		defer s.SetLoading(false)

		// Detached so one caller giving up does not fail the others.
		fctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Medium(), p.log, "seed memberships")
		defer cancel()

		ms, err := p.fetchMemberships(fctx, userID)
		p.metrics.ObserveSeed(err)
		if err != nil {
			return nil, err
		}
		if s.Seed(ms) {
			p.log.Debug("facility store seeded",
				zap.String("user_id", userID),
				zap.Int("memberships", len(ms)),
				zap.String("current_facility_id", s.CurrentFacilityID()))
		}
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stale reports whether a seeded store's memberships are due for a refresh.
func (p *Provider) Stale(s *facility.Store) bool {
	if p.refresh <= 0 || !s.IsInitialized() {
		return false
	}
	return p.now().Sub(s.LoadedAt()) >= p.refresh
}

// Refresh re-fetches memberships and replaces them without re-seeding.
// Reconciliation keeps the current selection when it is still a membership.
// Callers sharing a refresh wait for it; each may give up on its own ctx.
func (p *Provider) Refresh(ctx context.Context, key string, s *facility.Store, userID string) error {
	ch := p.group.DoChan("refresh:"+key, func() (any, error) {
		fctx, cancel := timeouts.WithTimeout(context.WithoutCancel(ctx), timeouts.Medium(), p.log, "refresh memberships")
		defer cancel()

		ms, err := p.fetchMemberships(fctx, userID)
		p.metrics.ObserveRefresh(err)
		if err != nil {
			return nil, err
		}
		s.SetFacilities(ms)
		if !s.IsInitialized() {
			s.SetInitialized(true)
		}
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) fetchMemberships(ctx context.Context, userID string) ([]facility.Membership, error) {
	start := p.now()
	ms, err := p.members.ListForUser(ctx, userID)
	p.metrics.ObserveFetch("memberships", p.now().Sub(start))
	return ms, err
}

// Outcome is the result of resolving a facility code.
type Outcome struct {
	// Facility is the resolved facility when access was granted.
	Facility *facility.Facility
	// Changed is true when the resolution changed the store's selection.
	Changed bool
	// RedirectCode is the code of the facility to send the user to when the
	// requested one is unknown or not theirs.
	RedirectCode string
	// NoFacilities is set when access was denied and the user has no
	// memberships to fall back to.
	NoFacilities bool
	// Superseded is set when a newer resolution for the same store started
	// before this one finished; its result was discarded.
	Superseded bool
}

// Resolve reconciles s with the facility code from the URL. s must be seeded.
func (p *Provider) Resolve(ctx context.Context, s *facility.Store, code string) (Outcome, error) {
	ticket := s.BeginResolve()

	fctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), p.log, "resolve facility code")
	defer cancel()

	start := p.now()
	f, err := p.facilities.FindByCode(fctx, code)
	p.metrics.ObserveFetch("facility_by_code", p.now().Sub(start))
	if err != nil {
		p.metrics.ObserveResolution(metrics.OutcomeError)
		return Outcome{}, err
	}
	// A request that went away must not move the selection.
	if err := ctx.Err(); err != nil {
		p.metrics.ObserveResolution(metrics.OutcomeError)
		return Outcome{}, err
	}

	if f != nil && s.HasFacilityAccess(f.ID) {
		if s.CommitResolved(ticket, f) {
			p.metrics.ObserveResolution(metrics.OutcomeGranted)
			return Outcome{Facility: f, Changed: true}, nil
		}
		if s.CurrentFacilityID() == f.ID {
			p.metrics.ObserveResolution(metrics.OutcomeUnchanged)
			return Outcome{Facility: f}, nil
		}
		p.metrics.ObserveResolution(metrics.OutcomeSuperseded)
		return Outcome{Superseded: true}, nil
	}

	// An unknown code counts as not_found whatever the fallback.
	outcome := metrics.OutcomeRedirected
	fb := facility.Fallback(s.Facilities())
	switch {
	case f == nil:
		outcome = metrics.OutcomeNotFound
	case fb == nil:
		outcome = metrics.OutcomeNoAccess
	}
	p.metrics.ObserveResolution(outcome)
	if fb == nil {
		return Outcome{NoFacilities: true}, nil
	}
	return Outcome{RedirectCode: fb.Facility.Code}, nil
}
