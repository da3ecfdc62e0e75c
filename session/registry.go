package session

import (
	"sync"

	"github.com/rotblauer/catride/stats"
)

// Factory builds the session a Registry hands out.
type Factory func() (*TrackingSession, error)

// Registry lazily builds one TrackingSession and returns that same
// instance to every caller. A failed build is retried on the next call.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	session *TrackingSession
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory}
}

func (r *Registry) GetOrCreate() (*TrackingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return r.session, nil
	}
	s, err := r.factory()
	if err != nil {
		return nil, err
	}
	r.session = s
	return s, nil
}

func (r *Registry) Start() error {
	s, err := r.GetOrCreate()
	if err != nil {
		return err
	}
	return s.Start()
}

func (r *Registry) Stop() (stats.Stats, error) {
	s, err := r.GetOrCreate()
	if err != nil {
		return stats.Stats{}, err
	}
	return s.Stop()
}

func (r *Registry) Stats() (stats.Stats, error) {
	s, err := r.GetOrCreate()
	if err != nil {
		return stats.Stats{}, err
	}
	return s.Stats(), nil
}

// Active reports whether the session exists and is riding.
// It does not build the session.
func (r *Registry) Active() bool {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	return s != nil && s.Active()
}
