package facilities

import (
	"net/http"

	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timezones"
)

// ServeView handles GET /f/{code}. The provider middleware has already
// resolved {code}; the handler reads that facility, not the live selection.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.requestStore(w, r); !ok {
		return
	}
	cur, _, ok := h.requestFacility(w, r)
	if !ok {
		return
	}

	role, _ := facility.CurrentRole(r)
	v := facilityView{
		Facility:         *cur,
		Role:             string(role),
		CanEdit:          facility.CanEdit(r),
		CanManageMembers: facility.CanManageMembers(r),
		Path:             facilityPath(cur.Code),
	}
	if cur.TimeZone != "" {
		v.TimeZoneLabel = timezones.Label(cur.TimeZone)
	}
	respond.JSON(w, http.StatusOK, v)
}
