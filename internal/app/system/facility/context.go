package facility

import (
	"context"
	"net/http"

	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
)

type ctxKey string

const (
	storeKey    ctxKey = "facilityStore"
	resolvedKey ctxKey = "resolvedFacility"
)

// WithStore returns a copy of ctx carrying s.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey, s)
}

// FromContext returns the Store carried by ctx, or nil.
func FromContext(ctx context.Context) *Store {
	if s, ok := ctx.Value(storeKey).(*Store); ok {
		return s
	}
	return nil
}

// FromRequest returns the Store for the request's session, or nil when the
// request did not pass through the facility provider.
func FromRequest(r *http.Request) *Store {
	return FromContext(r.Context())
}

// WithResolved pins f as the facility this request is about. The Store is
// shared by every request of a session, so a later selection change by
// another request must not redirect this one.
func WithResolved(ctx context.Context, f *Facility) context.Context {
	if f == nil {
		return ctx
	}
	cp := *f
	return context.WithValue(ctx, resolvedKey, &cp)
}

// Resolved returns the facility pinned by WithResolved, or nil.
func Resolved(r *http.Request) *Facility {
	if f, ok := r.Context().Value(resolvedKey).(*Facility); ok {
		cp := *f
		return &cp
	}
	return nil
}

// target is the facility id predicates apply to: the pinned facility, else
// "" which the Store reads as its current selection.
func target(r *http.Request) string {
	if f, ok := r.Context().Value(resolvedKey).(*Facility); ok {
		return f.ID
	}
	return ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request selectors                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// CurrentFacility returns the request's facility: the one resolved from the
// URL when there is one, else the store's selection, else nil.
func CurrentFacility(r *http.Request) *Facility {
	if f := Resolved(r); f != nil {
		return f
	}
	if s := FromRequest(r); s != nil {
		return s.CurrentFacility()
	}
	return nil
}

// CurrentFacilityID is the id of CurrentFacility, or "".
func CurrentFacilityID(r *http.Request) string {
	if id := target(r); id != "" {
		return id
	}
	if s := FromRequest(r); s != nil {
		return s.CurrentFacilityID()
	}
	return ""
}

// CurrentRole returns the user's role in the request's facility.
func CurrentRole(r *http.Request) (Role, bool) {
	s := FromRequest(r)
	if s == nil {
		return "", false
	}
	if id := target(r); id != "" {
		return s.RoleInFacility(id)
	}
	return s.GetCurrentFacilityRole()
}

// Facilities returns the request's memberships.
func Facilities(r *http.Request) []Membership {
	if s := FromRequest(r); s != nil {
		return s.Facilities()
	}
	return nil
}

// IsLoading reports whether the request's store is loading memberships.
func IsLoading(r *http.Request) bool {
	if s := FromRequest(r); s != nil {
		return s.IsLoading()
	}
	return false
}

// CanEdit reports whether the signed-in user may edit in the request's
// facility. Requests without a store cannot edit.
func CanEdit(r *http.Request) bool {
	if s := FromRequest(r); s != nil {
		return s.CanEditInFacility(target(r))
	}
	return false
}

// CanManageMembers reports whether the user may change memberships of the
// request's facility.
func CanManageMembers(r *http.Request) bool {
	if s := FromRequest(r); s != nil {
		return s.CanManageMembersInFacility(target(r))
	}
	return false
}

/*─────────────────────────────────────────────────────────────────────────────*
| Gates                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// RequireEdit rejects requests whose user cannot edit in the request's
// facility with 403 (HX-Redirect to /forbidden for HTMX).
func RequireEdit(next http.Handler) http.Handler {
	return gate(CanEdit, next)
}

// RequireManageMembers rejects requests whose user cannot manage members of
// the request's facility.
func RequireManageMembers(next http.Handler) http.Handler {
	return gate(CanManageMembers, next)
}

func gate(allowed func(*http.Request) bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowed(r) {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", "/forbidden")
			w.WriteHeader(http.StatusForbidden)
			return
		}
		respond.Error(w, http.StatusForbidden, "forbidden")
	})
}
