// Package content keeps the two uuid-keyed content stores of an XID:
// archived social posts and off-chain attachments.
package content

import (
	"fmt"
	"sort"

	"github.com/jmerrifield20/NexusXID/internal/xid/model"
)

// Store is not safe for concurrent use; the owning service serialises access.
type Store struct {
	twitter  map[string]model.Storage
	offchain map[string]model.Storage
}

// New returns empty stores.
func New() *Store {
	return &Store{
		twitter:  make(map[string]model.Storage),
		offchain: make(map[string]model.Storage),
	}
}

func (s *Store) bucket(t model.ContentType) (map[string]model.Storage, error) {
	switch t {
	case model.ContentTwitter:
		return s.twitter, nil
	case model.ContentOffChain:
		return s.offchain, nil
	}
	return nil, fmt.Errorf("%w: unknown content type %q", model.ErrInvalidArgument, t)
}

// Upload stores arg under its uuid in the store matching its content kind.
func (s *Store) Upload(owner string, arg model.StoreArg, now string) error {
	t, err := arg.Content.Type()
	if err != nil {
		return err
	}
	b, _ := s.bucket(t)
	if _, ok := b[arg.UUID]; ok {
		return model.ErrUUIDRepeat
	}
	b[arg.UUID] = model.Storage{
		Owner:      owner,
		UUID:       arg.UUID,
		Content:    arg.Content,
		DPlatform:  arg.DPlatform,
		UploadTime: now,
	}
	return nil
}

// Delete removes one item.
func (s *Store) Delete(ref model.ContentUUID) error {
	b, err := s.bucket(ref.ContentType)
	if err != nil {
		return err
	}
	if _, ok := b[ref.UUID]; !ok {
		return model.ErrUUIDNotExist
	}
	delete(b, ref.UUID)
	return nil
}

// Mint marks one item minted at now. Minting again refreshes the mint time.
func (s *Store) Mint(ref model.ContentUUID, now string) error {
	b, err := s.bucket(ref.ContentType)
	if err != nil {
		return err
	}
	item, ok := b[ref.UUID]
	if !ok {
		return model.ErrUUIDNotExist
	}
	item.IsMinted = true
	item.MintTime = now
	b[ref.UUID] = item
	return nil
}

// Size returns the number of items of type t.
func (s *Store) Size(t model.ContentType) (int, error) {
	b, err := s.bucket(t)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Page returns up to limit items of type t in uuid order, starting at
// index start. A start at or past the end is ErrFieldOutOfRange.
func (s *Store) Page(t model.ContentType, start, limit int) ([]model.Storage, error) {
	b, err := s.bucket(t)
	if err != nil {
		return nil, err
	}
	if start < 0 || start >= len(b) {
		return nil, model.ErrFieldOutOfRange
	}
	if limit < 0 {
		limit = 0
	}
	all := sorted(b)
	if limit > len(all)-start {
		limit = len(all) - start
	}
	return all[start : start+limit], nil
}

// Lookup returns the items named by refs in request order, skipping misses.
func (s *Store) Lookup(refs []model.ContentUUID) []model.Storage {
	out := make([]model.Storage, 0, len(refs))
	for _, ref := range refs {
		b, err := s.bucket(ref.ContentType)
		if err != nil {
			continue
		}
		if item, ok := b[ref.UUID]; ok {
			out = append(out, item)
		}
	}
	return out
}

func sorted(b map[string]model.Storage) []model.Storage {
	out := make([]model.Storage, 0, len(b))
	for _, item := range b {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

// Snapshot is the serialisable form of a Store.
type Snapshot struct {
	Twitter  []model.Storage `json:"twitter_store"`
	OffChain []model.Storage `json:"off_store"`
}

// Snapshot copies both stores.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Twitter: sorted(s.twitter), OffChain: sorted(s.offchain)}
}

// FromSnapshot rebuilds a Store, rejecting duplicate uuids and items filed
// under the wrong kind.
func FromSnapshot(snap Snapshot) (*Store, error) {
	s := New()
	load := func(want model.ContentType, items []model.Storage) error {
		b, _ := s.bucket(want)
		for _, item := range items {
			t, err := item.Content.Type()
			if err != nil || t != want {
				return fmt.Errorf("content snapshot: item %q is not %s content", item.UUID, want)
			}
			if item.UUID == "" {
				return fmt.Errorf("content snapshot: empty uuid in %s store", want)
			}
			if _, dup := b[item.UUID]; dup {
				return fmt.Errorf("content snapshot: duplicate uuid %q in %s store", item.UUID, want)
			}
			b[item.UUID] = item
		}
		return nil
	}
	if err := load(model.ContentTwitter, snap.Twitter); err != nil {
		return nil, err
	}
	if err := load(model.ContentOffChain, snap.OffChain); err != nil {
		return nil, err
	}
	return s, nil
}
