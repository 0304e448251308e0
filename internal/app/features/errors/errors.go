package errors

import (
	"net/http"

	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
)

// body is the JSON shape for error responses.
type body struct {
	Error    string `json:"error"`
	SignedIn bool   `json:"signed_in"`
	UserName string `json:"user_name,omitempty"`
	BackURL  string `json:"back_url,omitempty"`
}

// Handler is the errors feature handler.
// No DB needed; it just writes JSON.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden answers the target of HX-Redirect: /forbidden.
// GET /forbidden
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	RenderForbidden(w, r, "You don't have permission to do that in this facility.", "/facilities")
}

// Unauthorized answers GET /unauthorized.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	RenderUnauthorized(w, r, "")
}

// RenderUnauthorized writes a 401 "sign in required" body.
// If backURL is empty, it defaults to /login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	if backURL == "" {
		backURL = "/login"
	}
	write(w, r, http.StatusUnauthorized, "Please sign in to continue.", backURL)
}

// RenderForbidden writes a 403 body with msg.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	write(w, r, http.StatusForbidden, msg, backURL)
}

func write(w http.ResponseWriter, r *http.Request, status int, msg, backURL string) {
	b := body{Error: msg, BackURL: backURL}
	if u, ok := auth.CurrentUser(r); ok {
		b.SignedIn = true
		b.UserName = u.Name
	}
	respond.JSON(w, status, b)
}
