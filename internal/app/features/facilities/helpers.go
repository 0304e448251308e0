package facilities

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/limits"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var errNoStore = errors.New("no facility store on request")

// requestStore returns the user and the store the provider middleware put in
// the context. It answers 500 itself when either is missing.
func (h *Handler) requestStore(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, *facility.Store, bool) {
	u, ok := auth.CurrentUser(r)
	s := facility.FromRequest(r)
	if !ok || s == nil {
		h.ErrLog.LogServerError(w, r, "facilities handler mounted without provider", errNoStore, "Facility state unavailable.", "/facilities")
		return nil, nil, false
	}
	return u, s, true
}

// actorID is the signed-in user's ObjectID, or NilObjectID if the session
// id is malformed.
func actorID(u *auth.SessionUser) primitive.ObjectID {
	oid, _ := primitive.ObjectIDFromHex(u.ID)
	return oid
}

// parseForm caps the body before parsing it.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFacilityFormSize)
	return r.ParseForm()
}

// refresh reloads the user's memberships into s after a write that changed
// them. Failure is logged; the next periodic refresh catches up.
func (h *Handler) refresh(r *http.Request, u *auth.SessionUser, s *facility.Store) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), timeouts.Medium())
	defer cancel()
	if err := h.Provider.Refresh(ctx, u.SessionKey, s, u.ID); err != nil {
		h.Log.Warn("refresh memberships after write failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

// validationError reports whether err is a facility input error the client
// can fix.
func validationError(err error) bool {
	switch {
	case errors.Is(err, facilitystore.ErrInvalidCode),
		errors.Is(err, facilitystore.ErrInvalidStatus),
		errors.Is(err, facilitystore.ErrInvalidMaturity),
		errors.Is(err, facilitystore.ErrInvalidTimeZone),
		errors.Is(err, facilitystore.ErrNameRequired):
		return true
	}
	return false
}

// formBool reads checkbox-style values ("on", "true", "1").
func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// formFloat parses an optional number; "" yields (0, false, nil).
func formFloat(v string) (float64, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

// facilityPath is the overview URL for a facility code.
func facilityPath(code string) string {
	return "/f/" + code
}
