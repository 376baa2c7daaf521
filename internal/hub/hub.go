package hub

import (
	"context"
	"sort"
	"sync"

	"github.com/DoyleJ11/badart/internal/team"
)

// Factory builds the coordinator for a team the first time it is seen.
type Factory func(ctx context.Context, team string) *team.Coordinator

// Hub maps team names to their coordinators. Entries live for the life of
// the process.
type Hub struct {
	ctx     context.Context
	factory Factory

	mu    sync.RWMutex
	teams map[string]*team.Coordinator
}

func NewHub(ctx context.Context, factory Factory) *Hub {
	return &Hub{
		ctx:     ctx,
		factory: factory,
		teams:   make(map[string]*team.Coordinator),
	}
}

// Ensure returns the coordinator for name, creating it if needed. Two
// concurrent first calls get the same coordinator.
func (h *Hub) Ensure(name string) *team.Coordinator {
	h.mu.RLock()
	c := h.teams[name]
	h.mu.RUnlock()
	if c != nil {
		return c
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c := h.teams[name]; c != nil {
		return c
	}
	c = h.factory(h.ctx, name)
	h.teams[name] = c
	return c
}

// Get returns nil for an unknown team.
func (h *Hub) Get(name string) *team.Coordinator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.teams[name]
}

// Wait blocks until every coordinator's loop has exited. Cancel the
// hub's context first.
func (h *Hub) Wait() {
	h.mu.RLock()
	coords := make([]*team.Coordinator, 0, len(h.teams))
	for _, c := range h.teams {
		coords = append(coords, c)
	}
	h.mu.RUnlock()

	for _, c := range coords {
		c.Wait()
	}
}

// Teams lists known team names, sorted.
func (h *Hub) Teams() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.teams))
	for name := range h.teams {
		names = append(names, name)
	}
	h.mu.RUnlock()

	sort.Strings(names)
	return names
}
