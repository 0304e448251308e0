package logout

import (
	"net/http"

	"github.com/dalemusser/vpcroadmap/internal/app/system/auditlog"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"go.uber.org/zap"
)

// StoreDropper releases the facility store owned by a session key.
type StoreDropper interface {
	Drop(key string)
}

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Stores     StoreDropper
	Audit      *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, stores StoreDropper, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Stores:     stores,
		Audit:      auditLog,
	}
}

// ServeLogout handles GET and POST /logout.
//
// The session's facility store is reset and dropped from the registry before
// the cookie is expired, so a later sign-in starts from an empty store.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		if u.SessionKey != "" && h.Stores != nil {
			h.Stores.Drop(u.SessionKey)
			h.Log.Debug("logout: facility store dropped", zap.String("user_id", u.ID))
		}
		h.Audit.Logout(r.Context(), r, u.ID)
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}

	respond.Redirect(w, r, "/")
}
