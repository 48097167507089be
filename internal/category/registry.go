package category

import (
	"sync"

	"github.com/antufev/gracebot/internal/domain"
)

// Registry holds the notification categories declared during init.
// Register is upsert-by-id, so re-running the init sequence is safe.
type Registry struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
}

func NewRegistry() *Registry {
	return &Registry{
		categories: make(map[string]domain.Category),
	}
}

func (r *Registry) Register(c domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[c.ID] = c
}

// Get returns the category for id. A missing category is not an error:
// the notification simply carries no action buttons.
func (r *Registry) Get(id string) (domain.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[id]
	return c, ok
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.categories))
	for id := range r.categories {
		ids = append(ids, id)
	}
	return ids
}
