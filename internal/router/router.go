package router

import (
	"log"
	"sync"
)

// Handler processes one user interaction with a delivered notification.
type Handler func(payload map[string]string) error

// Router dispatches notification actions to registered handlers by
// action identifier. Unmatched identifiers fall back to the default-tap
// handler. A failing handler is logged and never blocks later actions.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

func New() *Router {
	return &Router{
		handlers: make(map[string]Handler),
	}
}

func (r *Router) Register(actionID string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionID] = h
}

// SetDefault registers the handler for the default tap and any action
// identifier without a dedicated handler.
func (r *Router) SetDefault(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

func (r *Router) Dispatch(actionID string, payload map[string]string) {
	r.mu.RLock()
	h, ok := r.handlers[actionID]
	if !ok {
		h = r.fallback
	}
	r.mu.RUnlock()

	if h == nil {
		log.Printf("No handler for action %q", actionID)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic in handler for action %q: %v", actionID, rec)
		}
	}()

	if err := h(payload); err != nil {
		log.Printf("Handler for action %q failed: %v", actionID, err)
	}
}
