package facilities

import (
	"net/http"
	"strings"

	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"go.uber.org/zap"
)

// HandleSelect handles POST /facilities/select (facility_id). Only one of the
// user's memberships can be selected; anything else is 404.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	u, s, ok := h.requestStore(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form submission.", "/facilities")
		return
	}

	id := strings.TrimSpace(r.FormValue("facility_id"))
	if !s.HasFacilityAccess(id) {
		h.ErrLog.HTTPError(w, r, http.StatusNotFound, "Facility not found.")
		return
	}

	s.SetCurrentFacilityByID(id)
	if err := h.Sessions.SaveFacilityID(w, r, s.CurrentFacilityID()); err != nil {
		h.Log.Warn("persist current facility failed", zap.String("user_id", u.ID), zap.Error(err))
	}

	respond.JSON(w, http.StatusOK, newStateView(s))
}
