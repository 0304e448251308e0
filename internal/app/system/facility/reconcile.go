package facility

// Reconcile picks the facility that should be current after the membership
// list is replaced with ms.
//
//   - empty list: nothing is selected
//   - prevID still present: keep it, using the new payload (role or status may have changed)
//   - otherwise the first membership flagged primary
//   - otherwise the first membership, in the order delivered
//
// The returned Facility is a copy; callers may keep it.
func Reconcile(prevID string, ms []Membership) *Facility {
	if len(ms) == 0 {
		return nil
	}
	if m := find(ms, prevID); m != nil {
		f := m.Facility
		return &f
	}
	if m := Primary(ms); m != nil {
		f := m.Facility
		return &f
	}
	f := ms[0].Facility
	return &f
}

// Primary returns the first membership flagged primary, or nil.
func Primary(ms []Membership) *Membership {
	for i := range ms {
		if ms[i].IsPrimary {
			return &ms[i]
		}
	}
	return nil
}

// Fallback returns the membership a user lands on when no explicit
// selection applies: the primary one, else the first. Nil when ms is empty.
func Fallback(ms []Membership) *Membership {
	if m := Primary(ms); m != nil {
		return m
	}
	if len(ms) == 0 {
		return nil
	}
	return &ms[0]
}
