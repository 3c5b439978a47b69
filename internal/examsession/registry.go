package examsession

import (
	"errors"
	"strings"
	"sync"
)

// ErrSessionActive is returned when the user already has an exam in progress.
var ErrSessionActive = errors.New("another exam is already in progress for this user")

// Registry allows at most one in-progress Session per user email.
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]struct{})}
}

func (r *Registry) acquire(email string) error {
	key := strings.ToLower(strings.TrimSpace(email))
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[key]; ok {
		return ErrSessionActive
	}
	r.active[key] = struct{}{}
	return nil
}

func (r *Registry) release(email string) {
	key := strings.ToLower(strings.TrimSpace(email))
	r.mu.Lock()
	delete(r.active, key)
	r.mu.Unlock()
}

// Active reports whether email has an exam in progress.
func (r *Registry) Active(email string) bool {
	key := strings.ToLower(strings.TrimSpace(email))
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[key]
	return ok
}
