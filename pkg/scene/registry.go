package scene

import (
	"strings"
	"sync"

	"github.com/chazu/facet/pkg/kernel"
	"github.com/google/uuid"
)

// Entry is one registered shape. Its mutex serialises every operation on
// the shape; operations on different entries do not contend.
type Entry struct {
	ID string

	mu    sync.Mutex
	shape kernel.Shape
}

// Registry maps generated identifiers to shapes for the lifetime of the
// process. Shapes are never removed.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// newID returns a random identifier as 32 lowercase hex characters.
func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Insert stores s under a fresh identifier and returns it.
func (r *Registry) Insert(s kernel.Shape) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := newID()
		if _, taken := r.entries[id]; taken {
			continue
		}
		r.entries[id] = &Entry{ID: id, shape: s}
		return id
	}
}

// Get returns the entry for id, or ErrShapeNotFound.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return e, nil
}

// Update runs fn on the shape while holding the entry lock. fn may
// mutate the shape in place.
func (r *Registry) Update(id string, fn func(kernel.Shape) error) error {
	e, err := r.Get(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.shape)
}

// View runs fn on the shape while holding the entry lock. Tessellation
// caches meshes on the shape, so reads are exclusive too.
func (r *Registry) View(id string, fn func(kernel.Shape) error) error {
	return r.Update(id, fn)
}

// Len returns the number of registered shapes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
