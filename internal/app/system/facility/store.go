package facility

import (
	"sync"
	"time"
)

// phase is the seeding lifecycle of a Store. The only forward transition is
// Uninitialized -> Seeded; Reset (or SetInitialized(false)) goes back.
type phase int

const (
	phaseUninitialized phase = iota
	phaseSeeded
)

// Store is the single source of truth for which facility is active for one
// session and what the user may do there. All writes go through its action
// methods; each action is one atomic transition and notifies subscribers
// after the lock is released. Lookups that fail resolve to nil/false.
type Store struct {
	mu sync.RWMutex

	current    *Facility
	facilities []Membership
	loading    bool
	phase      phase

	// pending is the persisted selection hydrated from the session. It is
	// not trusted until SetFacilities reconciles it against fresh data.
	pending string

	resolveSeq uint64
	loadedAt   time.Time

	listeners map[int]func(State)
	nextID    int
	now       func() time.Time
}

// NewStore returns a Store in its initial state.
func NewStore() *Store {
	return &Store{
		listeners: make(map[int]func(State)),
		now:       time.Now,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Actions                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// SetCurrentFacility sets the selection unconditionally. It does not check
// that f is one of the user's memberships.
func (s *Store) SetCurrentFacility(f *Facility) {
	s.mu.Lock()
	s.setCurrentLocked(f)
	s.mu.Unlock()
	s.notify()
}

// SetCurrentFacilityByID selects the membership whose facility has id, or
// clears the selection when there is none.
func (s *Store) SetCurrentFacilityByID(id string) {
	s.mu.Lock()
	if m := find(s.facilities, id); m != nil {
		s.setCurrentLocked(&m.Facility)
	} else {
		s.setCurrentLocked(nil)
	}
	s.mu.Unlock()
	s.notify()
}

// SetFacilities replaces the membership list and reconciles the selection
// so it references a facility in the new list (or nothing).
func (s *Store) SetFacilities(ms []Membership) {
	s.mu.Lock()
	s.setFacilitiesLocked(ms)
	s.mu.Unlock()
	s.notify()
}

// Seed performs the one-time Uninitialized -> Seeded transition: it
// replaces the memberships and marks the store initialized under a single
// lock. It returns false, changing nothing, if the store is already seeded.
func (s *Store) Seed(ms []Membership) bool {
	s.mu.Lock()
	if s.phase == phaseSeeded {
		s.mu.Unlock()
		return false
	}
	s.setFacilitiesLocked(ms)
	s.phase = phaseSeeded
	s.mu.Unlock()
	s.notify()
	return true
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.notify()
}

// SetInitialized moves the store to Seeded (true) or back to
// Uninitialized (false) without touching the memberships.
func (s *Store) SetInitialized(initialized bool) {
	s.mu.Lock()
	if initialized {
		s.phase = phaseSeeded
	} else {
		s.phase = phaseUninitialized
	}
	s.mu.Unlock()
	s.notify()
}

// Hydrate records the selection persisted from an earlier session. It only
// takes effect before the store is seeded and is reconciled by the first
// SetFacilities; it never populates CurrentFacility on its own.
func (s *Store) Hydrate(id string) {
	s.mu.Lock()
	if s.phase == phaseUninitialized && s.current == nil {
		s.pending = id
	}
	s.mu.Unlock()
}

// Reset restores the initial state. In-flight resolutions started before
// the reset can no longer commit.
func (s *Store) Reset() {
	s.mu.Lock()
	s.current = nil
	s.facilities = nil
	s.loading = false
	s.phase = phaseUninitialized
	s.pending = ""
	s.loadedAt = time.Time{}
	s.resolveSeq++
	s.mu.Unlock()
	s.notify()
}

// BeginResolve starts a URL resolution and returns its ticket. Starting a
// new resolution supersedes every earlier ticket.
func (s *Store) BeginResolve() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveSeq++
	return s.resolveSeq
}

// CommitResolved makes f current if ticket is still the latest resolution
// and f differs from the current selection. It reports whether the
// selection changed.
func (s *Store) CommitResolved(ticket uint64, f *Facility) bool {
	s.mu.Lock()
	if ticket != s.resolveSeq || f == nil || (s.current != nil && s.current.ID == f.ID && *s.current == *f) {
		s.mu.Unlock()
		return false
	}
	s.setCurrentLocked(f)
	s.mu.Unlock()
	s.notify()
	return true
}

/*─────────────────────────────────────────────────────────────────────────────*
| Selectors and predicates                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// CurrentFacility returns a copy of the selected facility, or nil.
func (s *Store) CurrentFacility() *Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	f := *s.current
	return &f
}

// CurrentFacilityID returns the selected facility id, or "".
func (s *Store) CurrentFacilityID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// PendingFacilityID returns the hydrated, not yet reconciled selection.
func (s *Store) PendingFacilityID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// Facilities returns a copy of the membership list.
func (s *Store) Facilities() []Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMemberships(s.facilities)
}

// IsLoading reports whether memberships are being fetched.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// IsInitialized reports whether the store has been seeded.
func (s *Store) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == phaseSeeded
}

// LoadedAt returns when the membership list was last replaced.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// GetCurrentFacilityRole returns the user's role in the selected facility.
// ok is false when nothing is selected.
func (s *Store) GetCurrentFacilityRole() (role Role, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	m := find(s.facilities, s.current.ID)
	if m == nil {
		return "", false
	}
	return m.Role, true
}

// RoleInFacility returns the user's role in the facility with id.
func (s *Store) RoleInFacility(id string) (role Role, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := find(s.facilities, id)
	if m == nil {
		return "", false
	}
	return m.Role, true
}

// HasFacilityAccess reports whether the user holds any membership in the
// facility with id.
func (s *Store) HasFacilityAccess(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.facilities, id) != nil
}

// CanEditInFacility reports whether the user may mutate data in the given
// facility, or in the current one when no id (or "") is passed.
// Viewers, non-members, and "no facility" all get false.
func (s *Store) CanEditInFacility(id ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target := ""
	if len(id) > 0 {
		target = id[0]
	}
	if target == "" && s.current != nil {
		target = s.current.ID
	}
	m := find(s.facilities, target)
	return m != nil && m.Role.CanEdit()
}

// CanManageMembersInFacility is CanEditInFacility for membership changes.
func (s *Store) CanManageMembersInFacility(id ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	target := ""
	if len(id) > 0 {
		target = id[0]
	}
	if target == "" && s.current != nil {
		target = s.current.ID
	}
	m := find(s.facilities, target)
	return m != nil && m.Role.CanManageMembers()
}

/*─────────────────────────────────────────────────────────────────────────────*
| Subscriptions                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// Subscribe registers fn to receive a snapshot after every action. The
// returned func removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// notify delivers a fresh snapshot to every listener. Must be called
// without holding mu.
func (s *Store) notify() {
	s.mu.RLock()
	if len(s.listeners) == 0 {
		s.mu.RUnlock()
		return
	}
	st := s.snapshotLocked()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(st)
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers (callers hold mu)                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (s *Store) setCurrentLocked(f *Facility) {
	if f == nil {
		s.current = nil
		return
	}
	cp := *f
	s.current = &cp
}

func (s *Store) setFacilitiesLocked(ms []Membership) {
	prev := s.pending
	if s.current != nil {
		prev = s.current.ID
	}
	s.facilities = cloneMemberships(ms)
	s.current = Reconcile(prev, s.facilities)
	s.pending = ""
	s.loadedAt = s.now()
}

func (s *Store) snapshotLocked() State {
	st := State{
		Facilities:    cloneMemberships(s.facilities),
		IsLoading:     s.loading,
		IsInitialized: s.phase == phaseSeeded,
	}
	if s.current != nil {
		f := *s.current
		st.CurrentFacility = &f
		st.CurrentFacilityID = f.ID
	}
	return st
}

func cloneMemberships(ms []Membership) []Membership {
	out := make([]Membership, len(ms))
	copy(out, ms)
	return out
}
