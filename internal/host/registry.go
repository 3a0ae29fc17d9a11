package host

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/casaops/intervene/pkg/api"
)

// ErrUnknownActivity is returned when an activity name has no registered
// handler.
var ErrUnknownActivity = errors.New("unknown activity")

// Registry maps activity names to strongly-typed handlers. Handlers are
// resolved once at registration time; invocation is a plain map lookup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]api.ActivityFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]api.ActivityFunc),
	}
}

// Register adds a handler for the given activity name.
// Duplicate names and nil handlers are rejected.
func (r *Registry) Register(name string, fn api.ActivityFunc) error {
	if name == "" {
		return errors.New("activity name is required")
	}
	if fn == nil {
		return fmt.Errorf("activity %s: handler is required", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("activity already registered: %s", name)
	}
	r.handlers[name] = fn
	return nil
}

// Lookup returns the handler for the given activity name.
func (r *Registry) Lookup(name string) (api.ActivityFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActivity, name)
	}
	return fn, nil
}

// Names returns the registered activity names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
