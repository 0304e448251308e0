package bootstrap

import (
	"github.com/dalemusser/vpcroadmap/internal/app/system/facilityprovider"
	"github.com/dalemusser/vpcroadmap/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Runtime is a pointer so Startup, BuildHandler and Shutdown, which each
// receive DBDeps by value, share the same registry and worker.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Runtime       *Runtime
}

// Runtime is the process-wide facility state: one store registry, its
// eviction worker, and the metrics both report to.
type Runtime struct {
	Metrics  *metrics.Metrics
	Registry *facilityprovider.Registry
	Eviction *facilityprovider.Eviction
}
