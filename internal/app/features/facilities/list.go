package facilities

import (
	"net/http"

	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
)

// ServeList handles GET /facilities: the user's memberships and the current
// selection. A user without memberships gets current_facility null.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	_, s, ok := h.requestStore(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, newStateView(s))
}
