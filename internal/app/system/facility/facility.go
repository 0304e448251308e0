// Package facility holds the facility-scoped selection and permission state
// for one signed-in session: the user's memberships, the currently selected
// facility, and the predicates that gate mutating actions.
package facility

// Facility status values.
const (
	StatusActive     = "active"
	StatusPlanning   = "planning"
	StatusOnboarding = "onboarding"
	StatusInactive   = "inactive"
)

// Facility is the read model of one site as seen by the state container.
type Facility struct {
	ID            string  `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Status        string  `json:"status"`
	MaturityScore float64 `json:"maturity_score"`
	TimeZone      string  `json:"time_zone"`
	Description   string  `json:"description"`
}

// Membership associates the signed-in user with one facility.
type Membership struct {
	Facility  Facility `json:"facility"`
	Role      Role     `json:"role"`
	IsPrimary bool     `json:"is_primary"`
}

// State is a point-in-time copy of a Store.
//
// CurrentFacilityID is "" when nothing is selected and always equals
// CurrentFacility.ID otherwise.
type State struct {
	CurrentFacility   *Facility    `json:"current_facility"`
	CurrentFacilityID string       `json:"current_facility_id"`
	Facilities        []Membership `json:"facilities"`
	IsLoading         bool         `json:"is_loading"`
	IsInitialized     bool         `json:"is_initialized"`
}

// find returns the membership for id, or nil.
func find(ms []Membership, id string) *Membership {
	if id == "" {
		return nil
	}
	for i := range ms {
		if ms[i].Facility.ID == id {
			return &ms[i]
		}
	}
	return nil
}
