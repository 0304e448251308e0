package facilityprovider

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func newTestProvider(members *fakeMembers, facs *fakeFacilities, opts Options) *Provider {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return New(members, facs, zap.NewNop(), opts)
}

func seeded(t *testing.T, p *Provider, s *facility.Store) {
	t.Helper()
	if err := p.EnsureSeeded(context.Background(), "k1", s, "u1"); err != nil {
		t.Fatalf("EnsureSeeded: %v", err)
	}
}

func TestEnsureSeeded_SeedsOnce(t *testing.T) {
	members := &fakeMembers{ms: editorAndPrimaryViewer()}
	p := newTestProvider(members, newFakeFacilities(), Options{})
	s := facility.NewStore()

	seeded(t, p, s)
	if !s.IsInitialized() {
		t.Fatal("expected store to be initialized")
	}
	if got := s.CurrentFacilityID(); got != "F2" {
		t.Errorf("CurrentFacilityID: got %q, want primary %q", got, "F2")
	}

	// A later seed must not fight a manual selection.
	s.SetCurrentFacilityByID("F1")
	seeded(t, p, s)
	if got := members.calls.Load(); got != 1 {
		t.Errorf("fetches: got %d, want 1", got)
	}
	if got := s.CurrentFacilityID(); got != "F1" {
		t.Errorf("manual selection: got %q, want %q", got, "F1")
	}
}

func TestEnsureSeeded_Concurrent_FetchesOnce(t *testing.T) {
	members := &fakeMembers{ms: editorAndPrimaryViewer(), release: make(chan struct{})}
	p := newTestProvider(members, newFakeFacilities(), Options{})
	s := facility.NewStore()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.EnsureSeeded(context.Background(), "k1", s, "u1")
		}()
	}

	// Let the fetch start, then observe the loading state before releasing.
	deadline := time.Now().Add(2 * time.Second)
	for members.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !s.IsLoading() {
		t.Error("expected IsLoading while the first fetch is in flight")
	}
	close(members.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("EnsureSeeded: %v", err)
		}
	}
	if got := members.calls.Load(); got != 1 {
		t.Errorf("fetches: got %d, want 1", got)
	}
	if s.IsLoading() {
		t.Error("expected loading to be cleared")
	}
}

func TestEnsureSeeded_ErrorLeavesUnseeded(t *testing.T) {
	members := &fakeMembers{err: errDown}
	p := newTestProvider(members, newFakeFacilities(), Options{})
	s := facility.NewStore()

	if err := p.EnsureSeeded(context.Background(), "k1", s, "u1"); err != errDown {
		t.Fatalf("got %v, want errDown", err)
	}
	if s.IsInitialized() || s.IsLoading() {
		t.Errorf("after failure: initialized=%v loading=%v, want false/false", s.IsInitialized(), s.IsLoading())
	}

	members.set(editorAndPrimaryViewer(), nil)
	seeded(t, p, s)
	if !s.IsInitialized() {
		t.Error("expected retry to seed")
	}
}

func TestEnsureSeeded_HonorsHydratedSelection(t *testing.T) {
	members := &fakeMembers{ms: editorAndPrimaryViewer()}
	p := newTestProvider(members, newFakeFacilities(), Options{})
	s := facility.NewStore()
	s.Hydrate("F1")

	seeded(t, p, s)
	if got := s.CurrentFacilityID(); got != "F1" {
		t.Errorf("CurrentFacilityID: got %q, want persisted %q", got, "F1")
	}
	if !s.CanEditInFacility() {
		t.Error("expected editor at WLK to be able to edit")
	}
}

func TestRefresh_KeepsSelectionAndPicksUpNewMemberships(t *testing.T) {
	members := &fakeMembers{ms: editorAndPrimaryViewer()}
	p := newTestProvider(members, newFakeFacilities(), Options{RefreshInterval: time.Minute})
	s := facility.NewStore()
	seeded(t, p, s)
	s.SetCurrentFacilityByID("F1")

	if p.Stale(s) {
		t.Error("freshly seeded store should not be stale")
	}
	p.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if !p.Stale(s) {
		t.Error("expected store to be stale after the interval")
	}

	members.set(append(editorAndPrimaryViewer(), facility.Membership{Facility: abc, Role: facility.RoleViewer}), nil)
	if err := p.Refresh(context.Background(), "k1", s, "u1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := len(s.Facilities()); got != 3 {
		t.Errorf("memberships: got %d, want 3", got)
	}
	if got := s.CurrentFacilityID(); got != "F1" {
		t.Errorf("selection: got %q, want %q", got, "F1")
	}
}

func TestRefresh_LostMembershipFallsBack(t *testing.T) {
	members := &fakeMembers{ms: editorAndPrimaryViewer()}
	p := newTestProvider(members, newFakeFacilities(), Options{})
	s := facility.NewStore()
	seeded(t, p, s)
	s.SetCurrentFacilityByID("F1")

	members.set([]facility.Membership{{Facility: jax, Role: facility.RoleViewer, IsPrimary: true}}, nil)
	if err := p.Refresh(context.Background(), "k1", s, "u1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := s.CurrentFacilityID(); got != "F2" {
		t.Errorf("selection: got %q, want fallback %q", got, "F2")
	}
}

func TestStale_DisabledByDefault(t *testing.T) {
	p := newTestProvider(&fakeMembers{}, newFakeFacilities(), Options{})
	s := facility.NewStore()
	s.Seed(nil)
	p.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if p.Stale(s) {
		t.Error("expected no refresh when RefreshInterval is zero")
	}
}

func TestRefresh_CancelledCallerDoesNotFailSharedRefresh(t *testing.T) {
	members := &fakeMembers{ms: editorAndPrimaryViewer()}
	p := newTestProvider(members, newFakeFacilities(), Options{})
	s := facility.NewStore()
	seeded(t, p, s)

	jaxOnly := []facility.Membership{{Facility: jax, Role: facility.RoleEditor, IsPrimary: true}}
	members.set(jaxOnly, nil)
	members.release = make(chan struct{})

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- p.Refresh(first, "k1", s, "u1") }()

	deadline := time.Now().Add(2 * time.Second)
	for members.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	secondErr := make(chan error, 1)
	go func() { secondErr <- p.Refresh(context.Background(), "k1", s, "u1") }()

	cancel()
	if err := <-firstErr; err != context.Canceled {
		t.Errorf("first caller: got %v, want context.Canceled", err)
	}
	close(members.release)
	if err := <-secondErr; err != nil {
		t.Fatalf("second caller: %v", err)
	}
	if got := s.CurrentFacilityID(); got != "F2" {
		t.Errorf("CurrentFacilityID: got %q, want %q", got, "F2")
	}
	if got := len(s.Facilities()); got != 1 {
		t.Errorf("memberships after refresh: got %d, want 1", got)
	}
}

func TestResolve_GrantedSelects(t *testing.T) {
	p := newTestProvider(&fakeMembers{ms: editorAndPrimaryViewer()}, newFakeFacilities(wlk, jax, abc), Options{})
	s := facility.NewStore()
	seeded(t, p, s)

	out, err := p.Resolve(context.Background(), s, "WLK")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.Changed || out.Facility == nil || out.Facility.ID != "F1" {
		t.Errorf("outcome: got %+v, want changed to F1", out)
	}
	if got := s.CurrentFacilityID(); got != "F1" {
		t.Errorf("CurrentFacilityID: got %q, want %q", got, "F1")
	}

	again, err := p.Resolve(context.Background(), s, "WLK")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if again.Changed {
		t.Error("resolving the current facility again should not change anything")
	}
}

func TestResolve_DeniedRedirectsToPrimary(t *testing.T) {
	p := newTestProvider(&fakeMembers{ms: editorAndPrimaryViewer()}, newFakeFacilities(wlk, jax, abc), Options{})
	s := facility.NewStore()
	seeded(t, p, s)
	s.SetCurrentFacilityByID("F1")

	out, err := p.Resolve(context.Background(), s, "ABC")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.RedirectCode != "JAX" {
		t.Errorf("RedirectCode: got %q, want %q", out.RedirectCode, "JAX")
	}
	if got := s.CurrentFacilityID(); got != "F1" {
		t.Errorf("denied access must not move the selection: got %q", got)
	}
}

func TestResolve_DeniedWithoutPrimaryUsesFirst(t *testing.T) {
	ms := []facility.Membership{
		{Facility: wlk, Role: facility.RoleViewer},
		{Facility: jax, Role: facility.RoleEditor},
	}
	p := newTestProvider(&fakeMembers{ms: ms}, newFakeFacilities(wlk, jax, abc), Options{})
	s := facility.NewStore()
	seeded(t, p, s)

	out, err := p.Resolve(context.Background(), s, "ABC")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.RedirectCode != "WLK" {
		t.Errorf("RedirectCode: got %q, want %q", out.RedirectCode, "WLK")
	}
}

func TestResolve_UnknownCodeRedirects(t *testing.T) {
	p := newTestProvider(&fakeMembers{ms: editorAndPrimaryViewer()}, newFakeFacilities(wlk, jax), Options{})
	s := facility.NewStore()
	seeded(t, p, s)

	out, err := p.Resolve(context.Background(), s, "ZZZ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.RedirectCode != "JAX" {
		t.Errorf("RedirectCode: got %q, want %q", out.RedirectCode, "JAX")
	}
}

func TestResolve_RecordsOneOutcomePerCall(t *testing.T) {
	m := metrics.New()
	p := newTestProvider(&fakeMembers{ms: editorAndPrimaryViewer()}, newFakeFacilities(wlk, jax, abc), Options{Metrics: m})
	s := facility.NewStore()
	seeded(t, p, s)

	for _, code := range []string{"ZZZ", "ABC", "WLK"} {
		if _, err := p.Resolve(context.Background(), s, code); err != nil {
			t.Fatalf("Resolve(%q): %v", code, err)
		}
	}

	empty := facility.NewStore()
	pe := newTestProvider(&fakeMembers{}, newFakeFacilities(wlk), Options{Metrics: m})
	seeded(t, pe, empty)
	if _, err := pe.Resolve(context.Background(), empty, "ZZZ"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := `
# HELP vpcroadmap_facility_resolutions_total URL facility-code resolutions by outcome.
# TYPE vpcroadmap_facility_resolutions_total counter
vpcroadmap_facility_resolutions_total{outcome="granted"} 1
vpcroadmap_facility_resolutions_total{outcome="not_found"} 2
vpcroadmap_facility_resolutions_total{outcome="redirected"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(want), "vpcroadmap_facility_resolutions_total"); err != nil {
		t.Error(err)
	}
}

func TestResolve_NoMemberships(t *testing.T) {
	p := newTestProvider(&fakeMembers{}, newFakeFacilities(wlk), Options{})
	s := facility.NewStore()
	seeded(t, p, s)

	out, err := p.Resolve(context.Background(), s, "WLK")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.NoFacilities {
		t.Errorf("outcome: got %+v, want NoFacilities", out)
	}
	if s.CurrentFacility() != nil {
		t.Error("expected no current facility")
	}
}

func TestResolve_FetchErrorPropagates(t *testing.T) {
	facs := newFakeFacilities(wlk)
	facs.err = errDown
	p := newTestProvider(&fakeMembers{ms: editorAndPrimaryViewer()}, facs, Options{})
	s := facility.NewStore()
	seeded(t, p, s)
	before := s.CurrentFacilityID()

	if _, err := p.Resolve(context.Background(), s, "WLK"); err != errDown {
		t.Fatalf("got %v, want errDown", err)
	}
	if got := s.CurrentFacilityID(); got != before {
		t.Errorf("selection moved on error: got %q, want %q", got, before)
	}
}

func TestResolve_CancelledRequestDoesNotCommit(t *testing.T) {
	p := newTestProvider(&fakeMembers{ms: editorAndPrimaryViewer()}, newFakeFacilities(wlk, jax), Options{})
	s := facility.NewStore()
	seeded(t, p, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Resolve(ctx, s, "WLK"); err == nil {
		t.Fatal("expected an error for a cancelled request")
	}
	if got := s.CurrentFacilityID(); got != "F2" {
		t.Errorf("selection: got %q, want unchanged %q", got, "F2")
	}
}

func TestResolve_SupersededDoesNotCommit(t *testing.T) {
	facs := newFakeFacilities(wlk, jax)
	facs.gateCode = "WLK"
	facs.gate = make(chan struct{})
	facs.entered = make(chan struct{}, 1)
	ms := append(editorAndPrimaryViewer(), facility.Membership{Facility: abc, Role: facility.RoleViewer})
	facs.byCode["ABC"] = abc
	p := newTestProvider(&fakeMembers{ms: ms}, facs, Options{})
	s := facility.NewStore()
	seeded(t, p, s)

	slow := make(chan Outcome, 1)
	go func() {
		out, _ := p.Resolve(context.Background(), s, "WLK")
		slow <- out
	}()
	<-facs.entered

	// A newer navigation finishes first.
	out, err := p.Resolve(context.Background(), s, "ABC")
	if err != nil || !out.Changed {
		t.Fatalf("newer Resolve: got (%+v, %v)", out, err)
	}

	close(facs.gate)
	late := <-slow
	if !late.Superseded {
		t.Errorf("late outcome: got %+v, want Superseded", late)
	}
	if got := s.CurrentFacilityID(); got != "F3" {
		t.Errorf("CurrentFacilityID: got %q, want newer %q", got, "F3")
	}
}
