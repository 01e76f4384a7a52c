// Package snapshot persists whole-state snapshots as named opaque blobs.
// Callers serialise their own state; a Store only saves and loads bytes.
package snapshot

import (
	"context"
	"errors"
)

// ErrNoSnapshot is returned by Load when nothing has been saved under name.
var ErrNoSnapshot = errors.New("no snapshot")

// Store saves and loads named snapshots. Save replaces any previous
// snapshot of the same name atomically.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
}

// Nop discards saves and never has a snapshot.
type Nop struct{}

func (Nop) Save(context.Context, string, []byte) error   { return nil }
func (Nop) Load(context.Context, string) ([]byte, error) { return nil, ErrNoSnapshot }
