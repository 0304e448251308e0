package bootstrap

import (
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/vpcroadmap/internal/app/features/errors"
	facilitiesfeature "github.com/dalemusser/vpcroadmap/internal/app/features/facilities"
	healthfeature "github.com/dalemusser/vpcroadmap/internal/app/features/health"
	loginfeature "github.com/dalemusser/vpcroadmap/internal/app/features/login"
	logoutfeature "github.com/dalemusser/vpcroadmap/internal/app/features/logout"
	"github.com/dalemusser/vpcroadmap/internal/app/store/audit"
	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	facilitymemberstore "github.com/dalemusser/vpcroadmap/internal/app/store/facilitymembers"
	userstore "github.com/dalemusser/vpcroadmap/internal/app/store/users"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auditlog"
	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facilityprovider"
	"github.com/dalemusser/vpcroadmap/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. It wires the session manager, the facility
// provider and its gate, and mounts the feature routers:
//
//	/health, /metrics                 public
//	/login, /logout                   session
//	/facilities                       signed in, seeded store
//	/f/{code}                         signed in, store resolved to {code}
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.Runtime
	if rt == nil || rt.Registry == nil {
		return nil, errors.New("build handler: Startup has not initialized the facility registry")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Reload the user on each request so disabled accounts lose access at once.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	provider := facilityprovider.New(
		facilitymemberstore.New(deps.MongoDatabase),
		facilitystore.New(deps.MongoDatabase),
		logger,
		facilityprovider.Options{
			RefreshInterval: appCfg.FacilityRefreshInterval,
			Metrics:         rt.Metrics,
		},
	)
	gate := facilityprovider.NewGate(provider, rt.Registry, sessionMgr, logger, "/facilities")

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLog := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:  appCfg.AuditAuth,
		Admin: appCfg.AuditAdmin,
	})

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, rt.Registry, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", rt.Metrics.Handler())

	// Authentication
	loginHandler := loginfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, rt.Registry, auditLog, logger)
	loginHandler.Limiter = ratelimit.NewLoginLimiter(
		appCfg.LoginIPLimit, appCfg.LoginIPWindow,
		appCfg.LoginAccountLimit, appCfg.LoginAccountWindow,
	)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, rt.Registry, auditLog, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Error responses targeted by HX-Redirect
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	// Facilities: everything below needs a signed-in user.
	facHandler := facilitiesfeature.NewHandler(deps.MongoDatabase, provider, sessionMgr, auditLog, errLog, logger)
	r.Group(func(pr chi.Router) {
		pr.Use(sessionMgr.RequireSignedIn)
		pr.Mount("/facilities", facilitiesfeature.Routes(facHandler, gate))
		pr.Mount("/f/{code}", facilitiesfeature.ScopedRoutes(facHandler, gate))
	})

	return r, nil
}
