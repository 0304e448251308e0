package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/vpcroadmap/internal/app/features/errors"
	userstore "github.com/dalemusser/vpcroadmap/internal/app/store/users"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auditlog"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/limits"
	"github.com/dalemusser/vpcroadmap/internal/app/system/ratelimit"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// StoreDropper releases the facility store owned by a session key.
type StoreDropper interface {
	Drop(key string)
}

type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Stores     StoreDropper
	Limiter    *ratelimit.LoginLimiter
	Audit      *auditlog.Logger
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, stores StoreDropper, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Stores:     stores,
		Limiter:    ratelimit.DefaultLoginLimiter(),
		Audit:      auditLog,
	}
}

type loginStatus struct {
	SignedIn  bool   `json:"signed_in"`
	UserID    string `json:"user_id,omitempty"`
	UserName  string `json:"user_name,omitempty"`
	LoginID   string `json:"login_id,omitempty"`
	ReturnURL string `json:"return_url,omitempty"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeLogin reports whether the caller is signed in.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	st := loginStatus{ReturnURL: urlutil.SafeReturn(query.Get(r, "return"), "", "/facilities")}
	if u, ok := auth.CurrentUser(r); ok {
		st.SignedIn = true
		st.UserID = u.ID
		st.UserName = u.Name
		st.LoginID = u.LoginID
	}
	respond.JSON(w, http.StatusOK, st)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLoginPost checks login_id/password and starts a session.
//
// Browsers are redirected to the safe "return" target (default /facilities);
// JSON clients get the signed-in status back.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxLoginFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	loginID := strings.TrimSpace(r.FormValue("login_id"))
	password := r.FormValue("password")
	if loginID == "" || password == "" {
		h.ErrLog.HTTPError(w, r, http.StatusBadRequest, "Please enter your login ID and password.")
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, loginID); !ok {
			h.Log.Warn("login throttled", zap.String("login_id", loginID), zap.String("ip", ratelimit.ClientIP(r)))
			h.Audit.LoginRateLimited(r.Context(), r, loginID)
			h.ErrLog.HTTPError(w, r, http.StatusTooManyRequests, reason)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.Authenticate(ctx, loginID, password)
	if errors.Is(err, userstore.ErrInvalidCredentials) {
		h.Log.Info("login rejected", zap.String("login_id", loginID))
		h.Audit.LoginFailed(r.Context(), r, loginID, "invalid credentials")
		h.ErrLog.HTTPError(w, r, http.StatusUnauthorized, "Invalid login ID or password.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "authenticate failed", err, "A database error occurred.", "/login")
		return
	}

	if h.Limiter != nil {
		h.Limiter.Succeeded(loginID)
	}

	// A previous sign-in on this browser owned a facility store; release it.
	if prev, ok := auth.CurrentUser(r); ok && prev.SessionKey != "" && h.Stores != nil {
		h.Stores.Drop(prev.SessionKey)
	}

	su := &auth.SessionUser{ID: u.ID.Hex(), Name: u.FullName, LoginID: u.LoginID}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not start your session.", "/login")
		return
	}
	h.Log.Info("user signed in", zap.String("user_id", su.ID), zap.String("login_id", su.LoginID))
	h.Audit.LoginSuccess(r.Context(), r, u.ID, u.LoginID)

	ret := urlutil.SafeReturn(r.FormValue("return"), "", "/facilities")
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		respond.JSON(w, http.StatusOK, loginStatus{
			SignedIn:  true,
			UserID:    su.ID,
			UserName:  su.Name,
			LoginID:   su.LoginID,
			ReturnURL: ret,
		})
		return
	}
	respond.Redirect(w, r, ret)
}
