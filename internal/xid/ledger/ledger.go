// Package ledger holds the main identity and the set of bound identities
// of one XID.
//
// A Ledger is not safe for concurrent use; the owning service serialises
// access to it.
package ledger

import (
	"fmt"
	"sort"

	"github.com/jmerrifield20/NexusXID/internal/xid/model"
)

// KeyMode selects how identities are compared.
type KeyMode int

const (
	// KeyTuple compares (platform, identity) field by field.
	KeyTuple KeyMode = iota
	// KeyConcat compares platform‖identity as one string. Pairs such as
	// {"ab","c"} and {"a","bc"} are treated as the same identity.
	KeyConcat
)

func (m KeyMode) String() string {
	if m == KeyConcat {
		return "concat"
	}
	return "tuple"
}

// Ledger is the bound-identity set plus the main identity.
type Ledger struct {
	mode KeyMode
	main model.Identity
	ids  map[any]model.Identity
}

// New returns an empty ledger.
func New(mode KeyMode) *Ledger {
	return &Ledger{mode: mode, ids: make(map[any]model.Identity)}
}

// Mode returns the comparison mode.
func (l *Ledger) Mode() KeyMode { return l.mode }

func (l *Ledger) key(id model.Identity) any {
	if l.mode == KeyConcat {
		return id.ConcatKey()
	}
	return id.Key()
}

func (l *Ledger) less(a, b model.Identity) bool {
	if l.mode == KeyConcat {
		return a.ConcatKey() < b.ConcatKey()
	}
	return a.Key().Less(b.Key())
}

// Bind adds id. The first identity bound to an empty main slot becomes main.
func (l *Ledger) Bind(id model.Identity) error {
	k := l.key(id)
	if _, ok := l.ids[k]; ok {
		return model.ErrAlreadyBound
	}
	l.ids[k] = id
	if l.main.IsEmpty() {
		l.main = id
	}
	return nil
}

// Unbind removes id and reports whether it was the main identity. Removing
// main leaves the main slot empty; no remaining member is promoted.
func (l *Ledger) Unbind(id model.Identity) (wasMain bool, err error) {
	k := l.key(id)
	if _, ok := l.ids[k]; !ok {
		return false, model.ErrNotFound
	}
	delete(l.ids, k)
	if !l.main.IsEmpty() && l.key(l.main) == k {
		l.main = model.Identity{}
		return true, nil
	}
	return false, nil
}

// ChangeMain makes the stored member equal to id the main identity.
func (l *Ledger) ChangeMain(id model.Identity) error {
	stored, ok := l.ids[l.key(id)]
	if !ok {
		return model.ErrNotFound
	}
	l.main = stored
	return nil
}

// Contains reports whether id is bound.
func (l *Ledger) Contains(id model.Identity) bool {
	_, ok := l.ids[l.key(id)]
	return ok
}

// Lookup returns the stored member equal to id, including its bind time.
func (l *Ledger) Lookup(id model.Identity) (model.Identity, bool) {
	stored, ok := l.ids[l.key(id)]
	return stored, ok
}

// Main returns the main identity, or the empty sentinel.
func (l *Ledger) Main() model.Identity { return l.main }

// List returns all members in ascending key order.
func (l *Ledger) List() []model.Identity {
	out := make([]model.Identity, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return l.less(out[i], out[j]) })
	return out
}

// Len returns the number of bound identities.
func (l *Ledger) Len() int { return len(l.ids) }

// Snapshot is the serialisable form of a Ledger.
type Snapshot struct {
	Main model.Identity   `json:"main_id"`
	IDs  []model.Identity `json:"ids"`
}

// Snapshot copies the ledger state.
func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{Main: l.main, IDs: l.List()}
}

// FromSnapshot rebuilds a ledger. Duplicate members or a main identity that
// is not a member make the snapshot invalid.
func FromSnapshot(mode KeyMode, s Snapshot) (*Ledger, error) {
	l := New(mode)
	for _, id := range s.IDs {
		if id.IsEmpty() {
			return nil, fmt.Errorf("ledger snapshot: empty identity in member set")
		}
		if err := l.Bind(id); err != nil {
			return nil, fmt.Errorf("ledger snapshot: duplicate identity %q/%q", id.Platform, id.Identity)
		}
	}
	l.main = model.Identity{}
	if !s.Main.IsEmpty() {
		if !l.Contains(s.Main) {
			return nil, fmt.Errorf("ledger snapshot: main identity %q/%q is not a member", s.Main.Platform, s.Main.Identity)
		}
		l.main = s.Main
	}
	return l, nil
}
