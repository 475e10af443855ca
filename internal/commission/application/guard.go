package application

import (
	"sync"

	commission "fuel-commission/internal/commission/domain"
)

// KeyedGuard admits at most one holder per station/period key.
type KeyedGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedGuard constructs an empty guard.
func NewKeyedGuard() *KeyedGuard {
	return &KeyedGuard{held: make(map[string]struct{})}
}

// TryAcquire claims key and returns its release func, or false when the key is held.
func (g *KeyedGuard) TryAcquire(key commission.Key) (func(), bool) {
	id := key.String()
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[id]; busy {
		return nil, false
	}
	g.held[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, id)
			g.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently claimed.
func (g *KeyedGuard) Held(key commission.Key) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.held[key.String()]
	return busy
}
