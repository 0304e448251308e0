package errors_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/vpcroadmap/internal/app/features/errors"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type errBody struct {
	Error    string `json:"error"`
	SignedIn bool   `json:"signed_in"`
	UserName string `json:"user_name"`
	BackURL  string `json:"back_url"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) errBody {
	t.Helper()
	var b errBody
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
	return b
}

func TestForbidden_SignedIn(t *testing.T) {
	h := uierrors.NewHandler()
	req := httptest.NewRequest(http.MethodGet, "/forbidden", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "u1", Name: "Ada"})
	rec := httptest.NewRecorder()

	h.Forbidden(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	b := decode(t, rec)
	if !b.SignedIn || b.UserName != "Ada" {
		t.Errorf("expected signed-in Ada, got %+v", b)
	}
}

func TestUnauthorized_DefaultsBackToLogin(t *testing.T) {
	h := uierrors.NewHandler()
	rec := httptest.NewRecorder()

	h.Unauthorized(rec, httptest.NewRequest(http.MethodGet, "/unauthorized", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if b := decode(t, rec); b.BackURL != "/login" || b.SignedIn {
		t.Errorf("unexpected body %+v", b)
	}
}

func TestLogServerError_HidesInternalError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := uierrors.NewErrorLogger(zap.New(core))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/facilities", nil)

	el.LogServerError(rec, req, "create facility failed", fmt.Errorf("socket closed"), "A database error occurred.", "/")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d", rec.Code)
	}
	if b := decode(t, rec); b.Error != "A database error occurred." {
		t.Errorf("error: got %q", b.Error)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.Message != "create facility failed" {
		t.Errorf("log message: got %q", entry.Message)
	}
	if entry.ContextMap()["path"] != "/facilities" {
		t.Errorf("log path: got %v", entry.ContextMap()["path"])
	}
}

func TestLogBadRequest_WarnLevel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	el := uierrors.NewErrorLogger(zap.New(core))
	rec := httptest.NewRecorder()

	el.LogBadRequest(rec, httptest.NewRequest(http.MethodPost, "/x", nil), "parse form failed", fmt.Errorf("bad"), "Invalid form data.", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rec.Code)
	}
	if logs.FilterMessage("parse form failed").Len() != 1 {
		t.Error("expected a warn entry")
	}
}
