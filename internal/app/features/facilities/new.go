package facilities

import (
	"context"
	"errors"
	"net/http"
	"strings"

	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/dalemusser/vpcroadmap/internal/app/system/txn"
	"github.com/dalemusser/vpcroadmap/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandleCreate handles POST /facilities.
//
// The creator becomes the facility's facility_admin. The membership is
// primary when it is the creator's first one. The session's store is
// refreshed so the new facility is selectable at once.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, s, ok := h.requestStore(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form submission.", "/facilities")
		return
	}

	userOID, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad user id in session", err, "Invalid session.", "/login")
		return
	}

	maturity, _, err := formFloat(r.FormValue("maturity_score"))
	if err != nil {
		h.ErrLog.HTTPError(w, r, http.StatusUnprocessableEntity, "Maturity score must be a number.")
		return
	}

	in := models.Facility{
		Code:          r.FormValue("code"),
		Name:          r.FormValue("name"),
		City:          strings.TrimSpace(r.FormValue("city")),
		State:         strings.TrimSpace(r.FormValue("state")),
		Status:        r.FormValue("status"),
		MaturityScore: maturity,
		TimeZone:      strings.TrimSpace(r.FormValue("time_zone")),
		Description:   r.FormValue("description"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	// The facility and its first admin are written together so a failed
	// grant never leaves an orphan facility nobody can manage.
	var created models.Facility
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		created, err = h.Facilities.Create(ctx, in)
		if err != nil {
			return err
		}
		n, err := h.Members.CountForUser(ctx, userOID)
		if err != nil {
			return err
		}
		_, err = h.Members.Grant(ctx, userOID, created.ID, string(facility.RoleFacilityAdmin), n == 0)
		return err
	})
	switch {
	case errors.Is(err, facilitystore.ErrDuplicateCode):
		h.ErrLog.HTTPError(w, r, http.StatusConflict, "A facility with that code already exists.")
		return
	case validationError(err):
		h.ErrLog.HTTPError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create facility failed", err, "A database error occurred.", "/facilities")
		return
	}
	h.Log.Info("facility created",
		zap.String("facility_id", created.ID.Hex()),
		zap.String("code", created.Code),
		zap.String("user_id", u.ID))
	h.Audit.FacilityCreated(ctx, r, userOID, created.ID, created.Code)

	h.refresh(r, u, s)

	f := facilitystore.ToFacility(created)
	w.Header().Set("Location", facilityPath(f.Code))
	respond.JSON(w, http.StatusCreated, facilityView{
		Facility:         f,
		Role:             string(facility.RoleFacilityAdmin),
		CanEdit:          s.CanEditInFacility(f.ID),
		CanManageMembers: s.CanManageMembersInFacility(f.ID),
		Path:             facilityPath(f.Code),
	})
}
