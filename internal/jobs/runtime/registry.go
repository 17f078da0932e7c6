package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/F-O-T/contentagen-nx-sub000/internal/jobs/payload"
)

// Handler runs one stage. Type is the stage name it serves.
type Handler interface {
	Type() string
	Run(ctx *Context) (payload.Fields, error)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	t := h.Type()
	if t == "" {
		return fmt.Errorf("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return fmt.Errorf("handler already registered for stage=%s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(stage string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[stage]
	return h, ok
}

// Stages lists the registered stage names, sorted.
func (r *Registry) Stages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc struct {
	Stage string
	Fn    func(ctx *Context) (payload.Fields, error)
}

func (h HandlerFunc) Type() string { return h.Stage }

func (h HandlerFunc) Run(ctx *Context) (payload.Fields, error) { return h.Fn(ctx) }
