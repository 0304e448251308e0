package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/vpcroadmap/internal/app/system/facilityprovider"
	"github.com/dalemusser/vpcroadmap/internal/app/system/metrics"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timezones"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It applies
// timeout overrides, checks the time zone table, and starts the worker that
// drops idle facility stores.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime == nil {
		return errors.New("startup: DBDeps.Runtime is nil")
	}

	timeouts.Configure(timeouts.Config{
		Short:  appCfg.Timeouts.Short,
		Medium: appCfg.Timeouts.Medium,
		Long:   appCfg.Timeouts.Long,
	})

	if err := timezones.Load(); err != nil {
		return fmt.Errorf("load time zones: %w", err)
	}

	rt := deps.Runtime
	rt.Metrics = metrics.New()
	rt.Registry = facilityprovider.NewRegistry(logger, rt.Metrics)
	rt.Eviction = facilityprovider.NewEviction(rt.Registry, logger, appCfg.FacilityEvictionInterval, appCfg.FacilityStoreIdleTTL)
	rt.Eviction.Start()

	return nil
}
