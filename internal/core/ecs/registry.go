package ecs

// Disposable is implemented by everything a Registry can reset and release in
// bulk: pools, and the groups built on top of them.
type Disposable interface {
	Reset()
	Dispose()
}

// Registry tracks disposables so a round restart or teardown reaches all of them.
type Registry struct {
	items []Disposable
}

func NewRegistry() *Registry {
	return &Registry{
		items: make([]Disposable, 0, 16),
	}
}

// Register adds a disposable to the registry.
func (r *Registry) Register(d Disposable) {
	r.items = append(r.items, d)
}

func (r *Registry) Len() int { return len(r.items) }

// ResetAll resets every registered item.
func (r *Registry) ResetAll() {
	for _, d := range r.items {
		d.Reset()
	}
}

// DisposeAll disposes every registered item and forgets them.
func (r *Registry) DisposeAll() {
	for _, d := range r.items {
		d.Dispose()
	}
	r.items = r.items[:0]
}
