package respond_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
)

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	respond.Error(rec, http.StatusServiceUnavailable, "down")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
	var body respond.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "down" {
		t.Errorf("error: got %q, want %q", body.Error, "down")
	}
}

func TestRedirect(t *testing.T) {
	rec := httptest.NewRecorder()
	respond.Redirect(rec, httptest.NewRequest("GET", "/f/ABC", nil), "/f/WLK")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/f/WLK" {
		t.Errorf("got %d %q, want 303 /f/WLK", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/f/ABC", nil)
	req.Header.Set("HX-Request", "true")
	respond.Redirect(rec, req, "/f/WLK")
	if rec.Header().Get("HX-Redirect") != "/f/WLK" {
		t.Errorf("HX-Redirect: got %q, want /f/WLK", rec.Header().Get("HX-Redirect"))
	}
}
