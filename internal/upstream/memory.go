package upstream

import (
	"context"
	"sync"

	"github.com/jmerrifield20/NexusXID/internal/xid/model"
)

// MemoryRegistry is an in-process registry that enforces one owner per
// (platform, identity). It backs standalone deployments and tests.
type MemoryRegistry struct {
	mu        sync.Mutex
	owners    map[model.SimpleID]string
	platforms map[string]bool // nil = any platform
}

// NewMemoryRegistry creates a MemoryRegistry. When platforms is non-empty
// only those platforms are accepted.
func NewMemoryRegistry(platforms ...string) *MemoryRegistry {
	r := &MemoryRegistry{owners: make(map[model.SimpleID]string)}
	if len(platforms) > 0 {
		r.platforms = make(map[string]bool, len(platforms))
		for _, p := range platforms {
			r.platforms[p] = true
		}
	}
	return r
}

// Put claims id for owner. Any existing claim is a conflict.
func (r *MemoryRegistry) Put(_ context.Context, owner string, id model.SimpleID) error {
	if owner == "" || id.Platform == "" || id.Identity == "" {
		return &RegistryError{Kind: model.KindInvalidOperation}
	}
	if r.platforms != nil && !r.platforms[id.Platform] {
		return &RegistryError{Kind: model.KindInvalidPlatform, Message: id.Platform}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[id]; ok {
		return &RegistryError{Kind: model.KindConflict}
	}
	r.owners[id] = owner
	return nil
}

// Delete releases owner's claim on id.
func (r *MemoryRegistry) Delete(_ context.Context, owner string, id model.SimpleID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, ok := r.owners[id]
	if !ok {
		return &RegistryError{Kind: model.KindNotFound}
	}
	if holder != owner {
		return &RegistryError{Kind: model.KindNotOwner}
	}
	delete(r.owners, id)
	return nil
}

// Owner returns the current holder of id.
func (r *MemoryRegistry) Owner(id model.SimpleID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id]
	return owner, ok
}
