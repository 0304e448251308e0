package logout_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/features/logout"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facilityprovider"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*logout.Handler, *facilityprovider.Registry) {
	t.Helper()
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	reg := facilityprovider.NewRegistry(logger, nil)
	return logout.NewHandler(sessionMgr, reg, nil, logger), reg
}

func TestServeLogout_RedirectsToHome(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/logout", nil)
	rec := httptest.NewRecorder()

	handler.ServeLogout(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if location := rec.Header().Get("Location"); location != "/" {
		t.Errorf("Location: got %q, want %q", location, "/")
	}
}

func TestServeLogout_ClearsSessionCookie(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeLogout(rec, httptest.NewRequest("POST", "/logout", nil))

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			found = true
			if c.MaxAge != -1 {
				t.Errorf("cookie MaxAge: got %d, want -1 (delete)", c.MaxAge)
			}
			break
		}
	}
	if !found {
		t.Error("expected session cookie to be set for deletion")
	}
}

func TestServeLogout_HTMX_ReturnsHXRedirect(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/logout", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()

	handler.ServeLogout(rec, req)

	if hx := rec.Header().Get("HX-Redirect"); hx != "/" {
		t.Errorf("HX-Redirect: got %q, want %q", hx, "/")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d for HTMX, got %d", http.StatusOK, rec.Code)
	}
}

func TestServeLogout_ResetsAndDropsFacilityStore(t *testing.T) {
	handler, reg := newTestHandler(t)

	s := reg.Get("session-1")
	f := facility.Facility{ID: "F1", Code: "WLK", Name: "Walker"}
	s.Seed([]facility.Membership{{Facility: f, Role: facility.RoleEditor, IsPrimary: true}})
	if reg.Len() != 1 {
		t.Fatalf("registry Len: got %d, want 1", reg.Len())
	}

	req := httptest.NewRequest("GET", "/logout", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Name: "Ada", SessionKey: "session-1"})
	handler.ServeLogout(httptest.NewRecorder(), req)

	if reg.Len() != 0 {
		t.Errorf("registry Len after logout: got %d, want 0", reg.Len())
	}
	if s.CurrentFacility() != nil || len(s.Facilities()) != 0 || s.IsInitialized() {
		t.Errorf("store not reset: %+v", s.Snapshot())
	}
}
