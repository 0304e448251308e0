package facilities

import (
	facilitymemberstore "github.com/dalemusser/vpcroadmap/internal/app/store/facilitymembers"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
)

// stateView is the JSON shape of GET /facilities and POST /facilities/select.
type stateView struct {
	CurrentFacility   *facility.Facility    `json:"current_facility"`
	CurrentFacilityID string                `json:"current_facility_id"`
	Role              string                `json:"role,omitempty"`
	CanEdit           bool                  `json:"can_edit"`
	CanManageMembers  bool                  `json:"can_manage_members"`
	Facilities        []facility.Membership `json:"facilities"`
	IsLoading         bool                  `json:"is_loading"`
	IsInitialized     bool                  `json:"is_initialized"`
}

// newStateView derives every field from one snapshot so the answer is
// consistent even while other requests of the session change the store.
func newStateView(s *facility.Store) stateView {
	snap := s.Snapshot()
	v := stateView{
		CurrentFacility:   snap.CurrentFacility,
		CurrentFacilityID: snap.CurrentFacilityID,
		Facilities:        snap.Facilities,
		IsLoading:         snap.IsLoading,
		IsInitialized:     snap.IsInitialized,
	}
	if v.Facilities == nil {
		v.Facilities = []facility.Membership{}
	}
	for _, m := range v.Facilities {
		if snap.CurrentFacilityID != "" && m.Facility.ID == snap.CurrentFacilityID {
			v.Role = string(m.Role)
			v.CanEdit = m.Role.CanEdit()
			v.CanManageMembers = m.Role.CanManageMembers()
			break
		}
	}
	return v
}

// facilityView is the JSON shape of one facility with the caller's rights.
type facilityView struct {
	Facility         facility.Facility `json:"facility"`
	TimeZoneLabel    string            `json:"time_zone_label,omitempty"`
	Role             string            `json:"role"`
	CanEdit          bool              `json:"can_edit"`
	CanManageMembers bool              `json:"can_manage_members"`
	Path             string            `json:"path"`
}

type membersView struct {
	FacilityID       string                          `json:"facility_id"`
	Members          []facilitymemberstore.MemberRow `json:"members"`
	CanManageMembers bool                            `json:"can_manage_members"`
}
