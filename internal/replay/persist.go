package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmerrifield20/NexusXID/internal/snapshot"
)

// SaveTo writes the consumed identifiers to store under name.
func (g *Guard) SaveTo(ctx context.Context, store snapshot.Store, name string) error {
	data, err := json.Marshal(g.Snapshot())
	if err != nil {
		return fmt.Errorf("encode replay snapshot: %w", err)
	}
	return store.Save(ctx, name, data)
}

// LoadFrom restores the guard from the snapshot saved under name. It
// returns false with a nil error when nothing has been saved yet.
func (g *Guard) LoadFrom(ctx context.Context, store snapshot.Store, name string) (bool, error) {
	data, err := store.Load(ctx, name)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("decode replay snapshot: %w", err)
	}
	if err := g.Restore(snap); err != nil {
		return false, err
	}
	return true, nil
}
