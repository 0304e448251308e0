package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every user created by Fixtures.
const TestPassword = "password123"

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateFacility inserts an active facility with the given code and name.
func (f *Fixtures) CreateFacility(ctx context.Context, code, name string) models.Facility {
	f.t.Helper()

	now := time.Now().UTC()
	fac := models.Facility{
		ID:            primitive.NewObjectID(),
		Code:          code,
		Name:          name,
		NameCI:        text.Fold(name),
		City:          "Test City",
		State:         "TS",
		Status:        "active",
		MaturityScore: 1.0,
		TimeZone:      "America/New_York",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("facilities").InsertOne(ctx, fac); err != nil {
		f.t.Fatalf("failed to create test facility: %v", err)
	}
	return fac
}

// CreateUser inserts an active user whose password is TestPassword.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, loginID string) models.User {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		LoginID:      loginID,
		LoginIDCI:    text.Fold(loginID),
		PasswordHash: string(hash),
		Status:       "active",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// Grant inserts a membership row directly. created_at is taken from the
// clock so rows granted in sequence list in that order.
func (f *Fixtures) Grant(ctx context.Context, userID, facilityID primitive.ObjectID, role string, primary bool) models.FacilityMembership {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.FacilityMembership{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		FacilityID: facilityID,
		Role:       role,
		IsPrimary:  primary,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("facility_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to grant test membership: %v", err)
	}
	return m
}
