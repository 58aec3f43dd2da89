package actions

import (
	"sort"

	"github.com/mkorchagin/content-pipeline/internal/core/ports"
)

// Registry maps stable handler keys to action implementations. It is
// populated once at startup; adding an action means registering a key here,
// never touching the dispatcher.
type Registry struct {
	handlers map[string]ports.ActionHandler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ports.ActionHandler)}
}

func (r *Registry) Register(key string, handler ports.ActionHandler) {
	r.handlers[key] = handler
}

func (r *Registry) Resolve(key string) (ports.ActionHandler, bool) {
	handler, ok := r.handlers[key]
	return handler, ok
}

func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for key := range r.handlers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
