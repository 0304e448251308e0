package facilityprovider

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Eviction is a background worker that drops idle facility stores.
type Eviction struct {
	registry *Registry
	log      *zap.Logger
	interval time.Duration
	idleTTL  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEviction creates the worker.
//
// Parameters:
//   - reg: the store registry
//   - logger: zap logger for logging
//   - interval: how often to sweep (e.g., 5 minutes)
//   - idleTTL: how long a store may go unused before it is dropped (e.g., 2 hours)
func NewEviction(reg *Registry, logger *zap.Logger, interval, idleTTL time.Duration) *Eviction {
	return &Eviction{
		registry: reg,
		log:      logger,
		interval: interval,
		idleTTL:  idleTTL,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *Eviction) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("facility store eviction worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("idle_ttl", w.idleTTL))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call twice.
func (w *Eviction) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("facility store eviction worker stopped")
	})
}

func (w *Eviction) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Eviction) sweep() {
	if n := w.registry.EvictIdle(w.idleTTL); n > 0 {
		w.log.Info("evicted idle facility stores",
			zap.Int("count", n),
			zap.Int("remaining", w.registry.Len()))
	}
}
