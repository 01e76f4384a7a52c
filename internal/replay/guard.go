// Package replay records one-time message identifiers so that a signed
// binding message cannot be submitted twice.
package replay

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInvalidSnapshot is returned by Restore for structurally invalid input.
var ErrInvalidSnapshot = errors.New("invalid replay snapshot")

// Guard is a thread-safe, monotonically growing set of consumed identifiers.
// An identifier is only ever removed by Reset or by restoring a snapshot
// that does not contain it.
type Guard struct {
	mu       sync.Mutex
	consumed map[string]struct{}
}

// Snapshot is the serialisable form of a Guard.
type Snapshot struct {
	Consumed []string `json:"consumed"`
}

// New creates an empty Guard.
func New() *Guard {
	return &Guard{consumed: make(map[string]struct{})}
}

// CheckAndConsume returns true and records id the first time it is seen,
// false on every later call with the same id.
func (g *Guard) CheckAndConsume(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.consumed[id]; ok {
		return false
	}
	g.consumed[id] = struct{}{}
	return true
}

// Seen reports whether id has been consumed without consuming it.
func (g *Guard) Seen(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.consumed[id]
	return ok
}

// Len returns the number of consumed identifiers.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.consumed)
}

// Reset wipes every consumed identifier. Administrative use only.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.consumed = make(map[string]struct{})
}

// Snapshot returns the consumed identifiers in ascending order.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.consumed))
	for id := range g.consumed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Snapshot{Consumed: ids}
}

// Restore replaces the guard's contents with snap. The new set is built
// completely before it is swapped in; on error the guard is unchanged.
func (g *Guard) Restore(snap Snapshot) error {
	next := make(map[string]struct{}, len(snap.Consumed))
	for _, id := range snap.Consumed {
		if _, dup := next[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidSnapshot, id)
		}
		next[id] = struct{}{}
	}

	g.mu.Lock()
	g.consumed = next
	g.mu.Unlock()
	return nil
}
