package facilities

import (
	"net/http"

	uierrors "github.com/dalemusser/vpcroadmap/internal/app/features/errors"
	"github.com/dalemusser/vpcroadmap/internal/app/store/audit"
	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	facilitymemberstore "github.com/dalemusser/vpcroadmap/internal/app/store/facilitymembers"
	userstore "github.com/dalemusser/vpcroadmap/internal/app/store/users"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auditlog"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facilityprovider"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// SelectionSaver persists the selected facility id in the session cookie.
type SelectionSaver interface {
	SaveFacilityID(w http.ResponseWriter, r *http.Request, id string) error
}

// Handler is the feature-level entry point for facilities and their members.
type Handler struct {
	DB         *mongo.Database
	Facilities *facilitystore.Store
	Members    *facilitymemberstore.Store
	Users      *userstore.Store
	Events     *audit.Store
	Provider   *facilityprovider.Provider
	Sessions   SelectionSaver
	Audit      *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

// NewHandler constructs a facilities Handler bound to a DB and the facility
// provider, which refreshes stores after writes. auditLog may be nil.
func NewHandler(db *mongo.Database, provider *facilityprovider.Provider, sessions SelectionSaver, auditLog *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Facilities: facilitystore.New(db),
		Members:    facilitymemberstore.New(db),
		Users:      userstore.New(db),
		Events:     audit.New(db),
		Provider:   provider,
		Sessions:   sessions,
		Audit:      auditLog,
		ErrLog:     errLog,
		Log:        logger,
	}
}
