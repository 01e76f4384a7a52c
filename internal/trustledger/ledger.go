package trustledger

import "context"

// Ledger is the append-only audit log.
type Ledger interface {
	// Append chains a new entry for ev after the current tip.
	Append(ctx context.Context, ev Event) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the number of entries, genesis included.
	Len(ctx context.Context) (int, error)

	// Verify walks the whole chain; nil means intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the chain tip.
	Root(ctx context.Context) (string, error)
}
