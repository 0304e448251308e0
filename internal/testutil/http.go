package testutil

import (
	"net/http"
	"net/http/httptest"

	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID         string
	Name       string
	LoginID    string
	SessionKey string
}

// NewTestUser returns a TestUser with a fresh id and session key.
func NewTestUser(name, loginID string) TestUser {
	return TestUser{
		ID:         primitive.NewObjectID().Hex(),
		Name:       name,
		LoginID:    loginID,
		SessionKey: primitive.NewObjectID().Hex(),
	}
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:         user.ID,
		Name:       user.Name,
		LoginID:    user.LoginID,
		SessionKey: user.SessionKey,
	})
}

// WithStore attaches a facility store the way the seeder middleware does.
func WithStore(r *http.Request, s *facility.Store) *http.Request {
	return r.WithContext(facility.WithStore(r.Context(), s))
}

// WithResolved pins f as the request's facility the way the scoped
// middleware does after resolving {code}.
func WithResolved(r *http.Request, f facility.Facility) *http.Request {
	return r.WithContext(facility.WithResolved(r.Context(), &f))
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}
