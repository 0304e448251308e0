package facilityprovider

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
)

var (
	wlk = facility.Facility{ID: "F1", Code: "WLK", Name: "Walker"}
	jax = facility.Facility{ID: "F2", Code: "JAX", Name: "Jacksonville"}
	abc = facility.Facility{ID: "F3", Code: "ABC", Name: "Not Mine"}

	errDown = errors.New("database down")
)

// editorAndPrimaryViewer is the membership list used by most tests:
// editor at WLK, viewer at JAX which is primary.
func editorAndPrimaryViewer() []facility.Membership {
	return []facility.Membership{
		{Facility: wlk, Role: facility.RoleEditor},
		{Facility: jax, Role: facility.RoleViewer, IsPrimary: true},
	}
}

type fakeMembers struct {
	mu      sync.Mutex
	ms      []facility.Membership
	err     error
	calls   atomic.Int32
	release chan struct{} // when non-nil, ListForUser waits for it
}

func (f *fakeMembers) ListForUser(ctx context.Context, userID string) ([]facility.Membership, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]facility.Membership, len(f.ms))
	copy(out, f.ms)
	return out, nil
}

func (f *fakeMembers) set(ms []facility.Membership, err error) {
	f.mu.Lock()
	f.ms, f.err = ms, err
	f.mu.Unlock()
}

type fakeFacilities struct {
	byCode map[string]facility.Facility
	err    error

	// gateCode blocks lookups of that code until gate is closed; entered
	// is signalled when such a lookup starts.
	gateCode string
	gate     chan struct{}
	entered  chan struct{}
}

func newFakeFacilities(fs ...facility.Facility) *fakeFacilities {
	m := make(map[string]facility.Facility, len(fs))
	for _, f := range fs {
		m[f.Code] = f
	}
	return &fakeFacilities{byCode: m}
}

func (f *fakeFacilities) FindByCode(ctx context.Context, code string) (*facility.Facility, error) {
	if f.gate != nil && code == f.gateCode {
		f.entered <- struct{}{}
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.byCode[code]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

type fakeSessions struct {
	mu    sync.Mutex
	id    string
	saves int
	err   error
}

func (s *fakeSessions) PersistedFacilityID(*http.Request) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *fakeSessions) SaveFacilityID(_ http.ResponseWriter, _ *http.Request, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.id != id {
		s.id = id
		s.saves++
	}
	return nil
}
