package facilityprovider

import (
	"sync"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Registry owns one facility.Store per signed-in session key.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type entry struct {
	store       *facility.Store
	lastSeen    time.Time
	unsubscribe func()
}

func NewRegistry(logger *zap.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		log:     logger,
		metrics: m,
		now:     time.Now,
	}
}

// Get returns the store for key, creating it on first use, and marks it
// as recently used. An empty key yields a throwaway store.
func (r *Registry) Get(key string) *facility.Store {
	if key == "" {
		return facility.NewStore()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		e.lastSeen = r.now()
		return e.store
	}

	s := facility.NewStore()
	e := &entry{store: s, lastSeen: r.now()}
	e.unsubscribe = s.Subscribe(selectionLogger(r.log, key))
	r.entries[key] = e
	r.metrics.SetStores(len(r.entries))
	return s
}

// Drop resets and forgets the store for key (sign-out).
func (r *Registry) Drop(key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
		r.metrics.SetStores(len(r.entries))
	}
	r.mu.Unlock()

	if ok {
		e.unsubscribe()
		e.store.Reset()
	}
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// EvictIdle drops stores unused for longer than maxIdle and returns how
// many were dropped. A later request for an evicted key starts over from
// the persisted selection.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var evicted []*entry
	for k, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			evicted = append(evicted, e)
			delete(r.entries, k)
		}
	}
	r.metrics.SetStores(len(r.entries))
	r.mu.Unlock()

	for _, e := range evicted {
		e.unsubscribe()
	}
	r.metrics.AddEvictions(len(evicted))
	return len(evicted)
}

// selectionLogger logs each change of the selected facility at debug level.
func selectionLogger(log *zap.Logger, key string) func(facility.State) {
	var mu sync.Mutex
	prev := ""
	return func(st facility.State) {
		mu.Lock()
		changed := st.CurrentFacilityID != prev
		prev = st.CurrentFacilityID
		mu.Unlock()
		if !changed {
			return
		}
		code := ""
		if st.CurrentFacility != nil {
			code = st.CurrentFacility.Code
		}
		log.Debug("facility selection changed",
			zap.String("session", key),
			zap.String("facility_id", st.CurrentFacilityID),
			zap.String("code", code))
	}
}
