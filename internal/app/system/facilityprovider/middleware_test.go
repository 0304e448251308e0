package facilityprovider

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type gateFixture struct {
	gate     *Gate
	members  *fakeMembers
	sessions *fakeSessions
	router   chi.Router
	seen     *facility.State
}

func newGateFixture(ms []facility.Membership, persisted string) *gateFixture {
	fx := &gateFixture{
		members:  &fakeMembers{ms: ms},
		sessions: &fakeSessions{id: persisted},
	}
	p := newTestProvider(fx.members, newFakeFacilities(wlk, jax, abc), Options{})
	fx.gate = NewGate(p, NewRegistry(zap.NewNop(), nil), fx.sessions, zap.NewNop(), "/facilities")

	record := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := facility.FromRequest(r).Snapshot()
		fx.seen = &st
		w.WriteHeader(http.StatusOK)
	})

	r := chi.NewRouter()
	r.With(fx.gate.Seeder).Get("/facilities", record)
	r.Route("/f/{code}", func(r chi.Router) {
		r.Use(fx.gate.Middleware)
		r.Get("/", record)
		r.Get("/plan", record)
	})
	fx.router = r
	return fx
}

func (fx *gateFixture) do(target string, signedIn bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if signedIn {
		req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Name: "Ada", SessionKey: "k1"})
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_GrantedSelectsAndPersists(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	rec := fx.do("/f/wlk/plan", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if fx.seen == nil || fx.seen.CurrentFacilityID != "F1" {
		t.Fatalf("handler saw %+v, want current F1", fx.seen)
	}
	if fx.sessions.id != "F1" {
		t.Errorf("persisted: got %q, want %q", fx.sessions.id, "F1")
	}
}

func TestMiddleware_DeniedRedirectsKeepingQuery(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	rec := fx.do("/f/ABC/plan?tab=quick-wins", true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/f/JAX/plan?tab=quick-wins" {
		t.Errorf("Location: got %q, want %q", got, "/f/JAX/plan?tab=quick-wins")
	}
	if fx.seen != nil {
		t.Error("handler must not run for a denied facility")
	}
}

func TestMiddleware_DeniedHTMX(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	req := httptest.NewRequest(http.MethodGet, "/f/ABC", nil)
	req.Header.Set("HX-Request", "true")
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", SessionKey: "k1"})
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("HX-Redirect"); got != "/f/JAX" {
		t.Errorf("HX-Redirect: got %q, want %q", got, "/f/JAX")
	}
}

func TestMiddleware_NoMembershipsGoesToLanding(t *testing.T) {
	fx := newGateFixture(nil, "")

	rec := fx.do("/f/WLK", true)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/facilities" {
		t.Errorf("got %d %q, want 303 /facilities", rec.Code, rec.Header().Get("Location"))
	}
}

func TestMiddleware_SeedFailureIs503(t *testing.T) {
	fx := newGateFixture(nil, "")
	fx.members.set(nil, errDown)

	rec := fx.do("/f/WLK", true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
}

func TestMiddleware_RequiresUser(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	rec := fx.do("/f/WLK", false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestSeeder_HydratesPersistedSelection(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "F1")

	rec := fx.do("/facilities", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if fx.seen.CurrentFacilityID != "F1" || !fx.seen.IsInitialized {
		t.Errorf("state: got %+v, want seeded with F1", fx.seen)
	}
	if fx.sessions.saves != 0 {
		t.Errorf("unchanged selection should not be re-saved, got %d saves", fx.sessions.saves)
	}
}

func TestSeeder_StalePersistedIDIsReplaced(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "GONE")

	fx.do("/facilities", true)
	if fx.seen.CurrentFacilityID != "F2" {
		t.Errorf("CurrentFacilityID: got %q, want primary %q", fx.seen.CurrentFacilityID, "F2")
	}
	if fx.sessions.id != "F2" {
		t.Errorf("persisted: got %q, want %q", fx.sessions.id, "F2")
	}
}

func TestSeeder_SameSessionSharesStore(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	fx.do("/f/WLK", true)
	fx.do("/facilities", true)
	if fx.seen.CurrentFacilityID != "F1" {
		t.Errorf("second request: got %q, want selection from first %q", fx.seen.CurrentFacilityID, "F1")
	}
	if got := fx.members.calls.Load(); got != 1 {
		t.Errorf("fetches: got %d, want 1", got)
	}
}

func TestMiddleware_UnknownCodeMatchingPrefixRedirects(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	rec := fx.do("/f/f/plan", true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/f/JAX/plan" {
		t.Errorf("Location: got %q, want %q", got, "/f/JAX/plan")
	}
}

// interleaved builds a router whose /f/{code}/edit route, after the gate has
// resolved the URL, lets a second request of the same session select other.
func interleaved(fx *gateFixture, other string, saw func(r *http.Request)) chi.Router {
	root := chi.NewRouter()
	user := &auth.SessionUser{ID: "u1", Name: "Ada", SessionKey: "k1"}

	otherTab := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := auth.WithTestUser(httptest.NewRequest(http.MethodGet, other, nil), user)
			root.ServeHTTP(httptest.NewRecorder(), req)
			next.ServeHTTP(w, r)
		})
	}
	root.Route("/f/{code}", func(r chi.Router) {
		r.Use(fx.gate.Middleware)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {})
		r.With(otherTab, facility.RequireEdit).Post("/edit", func(w http.ResponseWriter, r *http.Request) {
			saw(r)
			w.WriteHeader(http.StatusOK)
		})
	})
	return root
}

func TestMiddleware_ConcurrentSelectionDoesNotMoveRequest(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	var gotID string
	var gotCanEdit bool
	router := interleaved(fx, "/f/jax/", func(r *http.Request) {
		gotID = facility.CurrentFacilityID(r)
		gotCanEdit = facility.CanEdit(r)
	})

	req := auth.WithTestUser(httptest.NewRequest(http.MethodPost, "/f/wlk/edit", nil),
		&auth.SessionUser{ID: "u1", Name: "Ada", SessionKey: "k1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if got := fx.gate.Registry().Get("k1").CurrentFacilityID(); got != "F2" {
		t.Fatalf("session selection: got %q, want the other request's F2", got)
	}
	if gotID != "F1" || !gotCanEdit {
		t.Errorf("handler saw facility %q (can edit %v), want F1 (true)", gotID, gotCanEdit)
	}
}

func TestMiddleware_ConcurrentSelectionDoesNotGrantEdit(t *testing.T) {
	fx := newGateFixture(editorAndPrimaryViewer(), "")

	called := false
	router := interleaved(fx, "/f/wlk/", func(r *http.Request) { called = true })

	req := auth.WithTestUser(httptest.NewRequest(http.MethodPost, "/f/jax/edit", nil),
		&auth.SessionUser{ID: "u1", Name: "Ada", SessionKey: "k1"})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := fx.gate.Registry().Get("k1").CurrentFacilityID(); got != "F1" {
		t.Fatalf("session selection: got %q, want the other request's F1", got)
	}
	if called || rec.Code != http.StatusForbidden {
		t.Errorf("viewer at JAX: status %d, handler called %v; want 403 and not called", rec.Code, called)
	}
}

func TestSubstituteCode(t *testing.T) {
	const pattern = "/f/{code}/*"
	tests := []struct {
		in, pattern, to, want string
	}{
		{"/f/ABC", "/f/{code}", "WLK", "/f/WLK"},
		{"/f/abc/plan", pattern, "WLK", "/f/WLK/plan"},
		{"/f/ABC/plan?tab=1&x=y", pattern, "JAX", "/f/JAX/plan?tab=1&x=y"},
		{"/f/ABC/ABC", pattern, "JAX", "/f/JAX/ABC"},
		{"/f/f", pattern, "JAX", "/f/JAX"},
		{"/f/F/members", pattern, "JAX", "/f/JAX/members"},
		{"/sites/f/x", "/sites/{code:[a-z]+}/*", "JAX", "/sites/JAX/x"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			u, err := url.Parse(tc.in)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := SubstituteCode(u, tc.pattern, tc.to)
			if !ok || got != tc.want {
				t.Errorf("got %q (%v), want %q", got, ok, tc.want)
			}
		})
	}
}

func TestSubstituteCode_NoCodeSegment(t *testing.T) {
	u, _ := url.Parse("/facilities")
	if got, ok := SubstituteCode(u, "/facilities", "JAX"); ok {
		t.Errorf("got %q, want no substitution", got)
	}
}
