package facilities

import (
	"context"
	"errors"
	"net/http"

	facilitymemberstore "github.com/dalemusser/vpcroadmap/internal/app/store/facilitymembers"
	userstore "github.com/dalemusser/vpcroadmap/internal/app/store/users"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// requestFacility returns the facility the provider resolved from the URL
// and its ObjectID, answering 404 itself when there is none. It never reads
// the session's live selection, which other requests may change.
func (h *Handler) requestFacility(w http.ResponseWriter, r *http.Request) (*facility.Facility, primitive.ObjectID, bool) {
	cur := facility.CurrentFacility(r)
	if cur == nil {
		h.ErrLog.HTTPError(w, r, http.StatusNotFound, "Facility not found.")
		return nil, primitive.NilObjectID, false
	}
	oid, err := primitive.ObjectIDFromHex(cur.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "bad facility id in store", err, "Facility state unavailable.", "/facilities")
		return nil, primitive.NilObjectID, false
	}
	return cur, oid, true
}

// ServeMembers handles GET /f/{code}/members.
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.requestStore(w, r); !ok {
		return
	}
	_, fid, ok := h.requestFacility(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rows, err := h.Members.ListByFacility(ctx, fid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list facility members failed", err, "A database error occurred.", "/facilities")
		return
	}
	if rows == nil {
		rows = []facilitymemberstore.MemberRow{}
	}
	respond.JSON(w, http.StatusOK, membersView{
		FacilityID:       fid.Hex(),
		Members:          rows,
		CanManageMembers: facility.CanManageMembers(r),
	})
}

// HandleGrant handles POST /f/{code}/members (login_id, role, primary).
// Granting to an existing member changes their role.
// Authorization: facility.RequireManageMembers in routes.go.
func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	u, s, ok := h.requestStore(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form submission.", "/facilities")
		return
	}
	_, fid, ok := h.requestFacility(w, r)
	if !ok {
		return
	}

	role := r.FormValue("role")
	if _, valid := facility.ParseRole(role); !valid {
		h.ErrLog.HTTPError(w, r, http.StatusUnprocessableEntity, facilitymemberstore.ErrBadRole.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	target, err := h.Users.GetByLoginID(ctx, r.FormValue("login_id"))
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.HTTPError(w, r, http.StatusNotFound, "No user with that login ID.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "lookup user failed", err, "A database error occurred.", "/facilities")
		return
	}

	if target.ID.Hex() == u.ID && role != string(facility.RoleFacilityAdmin) {
		last, err := h.lastAdmin(ctx, fid, target.ID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "count facility admins failed", err, "A database error occurred.", "/facilities")
			return
		}
		if last {
			h.ErrLog.HTTPError(w, r, http.StatusConflict, "A facility needs at least one facility admin.")
			return
		}
	}

	m, err := h.Members.Grant(ctx, target.ID, fid, role, formBool(r.FormValue("primary")))
	if errors.Is(err, facilitymemberstore.ErrBadRole) {
		h.ErrLog.HTTPError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "grant membership failed", err, "A database error occurred.", "/facilities")
		return
	}
	h.Log.Info("membership granted",
		zap.String("facility_id", fid.Hex()),
		zap.String("user_id", target.ID.Hex()),
		zap.String("role", m.Role),
		zap.String("by", u.ID))
	h.Audit.MembershipGranted(ctx, r, actorID(u), target.ID, fid, m.Role)

	if target.ID.Hex() == u.ID {
		h.refresh(r, u, s)
	}

	respond.JSON(w, http.StatusCreated, facilitymemberstore.MemberRow{
		UserID:    target.ID.Hex(),
		FullName:  target.FullName,
		LoginID:   target.LoginID,
		Role:      m.Role,
		IsPrimary: m.IsPrimary,
	})
}

// HandleRevoke handles POST /f/{code}/members/{userID}/delete.
// The last facility_admin cannot be removed.
// Authorization: facility.RequireManageMembers in routes.go.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	u, s, ok := h.requestStore(w, r)
	if !ok {
		return
	}
	_, fid, ok := h.requestFacility(w, r)
	if !ok {
		return
	}
	uid, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		h.ErrLog.HTTPError(w, r, http.StatusBadRequest, "Invalid user id.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	last, err := h.lastAdmin(ctx, fid, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count facility admins failed", err, "A database error occurred.", "/facilities")
		return
	}
	if last {
		h.ErrLog.HTTPError(w, r, http.StatusConflict, "A facility needs at least one facility admin.")
		return
	}

	n, err := h.Members.Revoke(ctx, uid, fid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "revoke membership failed", err, "A database error occurred.", "/facilities")
		return
	}
	if n == 0 {
		h.ErrLog.HTTPError(w, r, http.StatusNotFound, "Membership not found.")
		return
	}
	h.Log.Info("membership revoked",
		zap.String("facility_id", fid.Hex()),
		zap.String("user_id", uid.Hex()),
		zap.String("by", u.ID))
	h.Audit.MembershipRevoked(ctx, r, actorID(u), uid, fid)

	if uid.Hex() == u.ID {
		h.refresh(r, u, s)
	}

	respond.JSON(w, http.StatusOK, map[string]any{"removed": true, "user_id": uid.Hex()})
}

// lastAdmin reports whether userID is the only facility_admin of facilityID.
func (h *Handler) lastAdmin(ctx context.Context, facilityID, userID primitive.ObjectID) (bool, error) {
	rows, err := h.Members.ListByFacility(ctx, facilityID)
	if err != nil {
		return false, err
	}
	admins, isAdmin := 0, false
	for _, row := range rows {
		if row.Role != string(facility.RoleFacilityAdmin) {
			continue
		}
		admins++
		if row.UserID == userID.Hex() {
			isAdmin = true
		}
	}
	return isAdmin && admins == 1, nil
}
