package facilities

import (
	"context"
	"errors"
	"net/http"

	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleEdit handles POST /f/{code}/edit. Only fields present in the form
// are changed. The code itself is immutable.
// Authorization: facility.RequireEdit in routes.go.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	u, s, ok := h.requestStore(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form submission.", "/facilities")
		return
	}

	cur, oid, ok := h.requestFacility(w, r)
	if !ok {
		return
	}

	var p facilitystore.Patch
	var fields []string
	str := func(key string) *string {
		if _, present := r.PostForm[key]; !present {
			return nil
		}
		fields = append(fields, key)
		v := r.PostForm.Get(key)
		return &v
	}
	p.Name = str("name")
	p.City = str("city")
	p.State = str("state")
	p.Status = str("status")
	p.TimeZone = str("time_zone")
	p.Description = str("description")
	if raw := str("maturity_score"); raw != nil {
		v, set, err := formFloat(*raw)
		if err != nil || !set {
			h.ErrLog.HTTPError(w, r, http.StatusUnprocessableEntity, "Maturity score must be a number.")
			return
		}
		p.MaturityScore = &v
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	updated, err := h.Facilities.Update(ctx, oid, p)
	switch {
	case errors.Is(err, facilitystore.ErrNotFound):
		h.ErrLog.HTTPError(w, r, http.StatusNotFound, "Facility not found.")
		return
	case validationError(err):
		h.ErrLog.HTTPError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "update facility failed", err, "A database error occurred.", facilityPath(cur.Code))
		return
	}
	h.Log.Info("facility updated", zap.String("facility_id", cur.ID), zap.String("user_id", u.ID))
	h.Audit.FacilityUpdated(ctx, r, actorID(u), oid, fields)

	h.refresh(r, u, s)

	role, _ := facility.CurrentRole(r)
	respond.JSON(w, http.StatusOK, facilityView{
		Facility:         facilitystore.ToFacility(updated),
		Role:             string(role),
		CanEdit:          facility.CanEdit(r),
		CanManageMembers: facility.CanManageMembers(r),
		Path:             facilityPath(updated.Code),
	})
}
