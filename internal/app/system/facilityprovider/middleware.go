package facilityprovider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/normalize"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CodeParam is the chi URL parameter holding the facility code.
const CodeParam = "code"

// Sessions persists the selected facility id across requests.
type Sessions interface {
	PersistedFacilityID(r *http.Request) string
	SaveFacilityID(w http.ResponseWriter, r *http.Request, id string) error
}

// Gate adapts a Provider to HTTP. Handlers behind it always see a seeded
// store; handlers behind Middleware also see the URL's facility selected.
type Gate struct {
	provider *Provider
	registry *Registry
	sessions Sessions
	log      *zap.Logger
	landing  string
}

// NewGate builds the middlewares. landing is where users without any
// facility are sent (e.g. "/facilities").
func NewGate(p *Provider, reg *Registry, sess Sessions, logger *zap.Logger, landing string) *Gate {
	return &Gate{provider: p, registry: reg, sessions: sess, log: logger, landing: landing}
}

// Registry returns the store registry (logout drops from it).
func (g *Gate) Registry() *Registry { return g.registry }

// Seeder loads and seeds the session's store and puts it in the request
// context. Use it on routes that do not carry a facility code.
func (g *Gate) Seeder(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := g.prepare(w, r)
		if !ok {
			return
		}
		g.persist(w, r, s)
		next.ServeHTTP(w, r.WithContext(facility.WithStore(r.Context(), s)))
	})
}

// Middleware is Seeder plus resolution of the {code} URL parameter. When the
// user may not see that facility it redirects to the same path with the
// code of their primary (or first) facility, keeping the query string.
// Handlers see the resolved facility through facility.CurrentFacility even
// if another request of the session changes the selection meanwhile.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := g.prepare(w, r)
		if !ok {
			return
		}

		raw := chi.URLParam(r, CodeParam)
		out, err := g.provider.Resolve(r.Context(), s, normalize.FacilityCode(raw))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			g.log.Error("resolve facility code failed", zap.String("code", raw), zap.Error(err))
			respond.Error(w, http.StatusServiceUnavailable, "facility data unavailable")
			return
		}

		switch {
		case out.Superseded:
			respond.Error(w, http.StatusConflict, "facility selection changed by another request")
			return
		case out.NoFacilities:
			g.persist(w, r, s)
			respond.Redirect(w, r, g.landing)
			return
		case out.RedirectCode != "":
			g.persist(w, r, s)
			to, ok := SubstituteCode(r.URL, routePattern(r), out.RedirectCode)
			if !ok {
				to = g.landing
			}
			respond.Redirect(w, r, to)
			return
		}

		g.persist(w, r, s)
		ctx := facility.WithStore(r.Context(), s)
		ctx = facility.WithResolved(ctx, out.Facility)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// prepare finds the session's store, hydrates it, and blocks until it is
// seeded. It writes the error response itself and reports false on failure.
func (g *Gate) prepare(w http.ResponseWriter, r *http.Request) (*facility.Store, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	s := g.registry.Get(u.SessionKey)
	s.Hydrate(g.sessions.PersistedFacilityID(r))

	if err := g.provider.EnsureSeeded(r.Context(), u.SessionKey, s, u.ID); err != nil {
		if !errors.Is(err, context.Canceled) {
			g.log.Error("seed facility store failed", zap.String("user_id", u.ID), zap.Error(err))
			respond.Error(w, http.StatusServiceUnavailable, "facility data unavailable")
		}
		return nil, false
	}

	if g.provider.Stale(s) {
		if err := g.provider.Refresh(r.Context(), u.SessionKey, s, u.ID); err != nil {
			// Serve the memberships we have; the next request retries.
			g.log.Warn("refresh memberships failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return s, true
}

func (g *Gate) persist(w http.ResponseWriter, r *http.Request, s *facility.Store) {
	if err := g.sessions.SaveFacilityID(w, r, s.CurrentFacilityID()); err != nil {
		g.log.Warn("persist current facility failed", zap.Error(err))
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// SubstituteCode returns u's path with the segment at the {code} position of
// the chi route pattern replaced by to, plus the original query. It reports
// false when the pattern has no {code} segment or the path is too short.
func SubstituteCode(u *url.URL, pattern, to string) (string, bool) {
	pos := -1
	for i, seg := range strings.Split(pattern, "/") {
		if seg == "{"+CodeParam+"}" || strings.HasPrefix(seg, "{"+CodeParam+":") {
			pos = i
			break
		}
	}
	segs := strings.Split(u.Path, "/")
	if pos < 0 || pos >= len(segs) {
		return "", false
	}
	segs[pos] = url.PathEscape(to)
	out := strings.Join(segs, "/")
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, true
}
