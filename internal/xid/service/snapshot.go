package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmerrifield20/NexusXID/internal/principal"
	"github.com/jmerrifield20/NexusXID/internal/snapshot"
	"github.com/jmerrifield20/NexusXID/internal/xid/content"
	"github.com/jmerrifield20/NexusXID/internal/xid/ledger"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
	"go.uber.org/zap"
)

// Names the XID state and the in-process replay guard are saved under.
const (
	SnapshotName       = "xid"
	ReplaySnapshotName = "xid-replay"
)

const snapshotVersion = 1

// Snapshot is the whole persisted XID state.
type Snapshot struct {
	Version   int              `json:"version"`
	Owner     string           `json:"owner"`
	Name      string           `json:"name"`
	AvatarURL string           `json:"avatar_url"`
	Avatar    model.Avatar     `json:"avatar"`
	Ledger    ledger.Snapshot  `json:"ledger"`
	Ticket    string           `json:"pending_ticket"`
	Content   content.Snapshot `json:"content"`
}

// Snapshot copies the current state.
func (s *XidService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Version:   snapshotVersion,
		Owner:     s.st.owner.String(),
		Name:      s.st.name,
		AvatarURL: s.st.avatarURL,
		Avatar:    model.Avatar{Data: append([]byte(nil), s.st.avatar.Data...), Type: s.st.avatar.Type},
		Ledger:    s.st.ids.Snapshot(),
		Ticket:    s.st.ticket,
		Content:   s.st.content.Snapshot(),
	}
}

// Restore replaces the whole state with snap. The new state is built and
// validated first and swapped in only if every part is valid, so a failed
// restore leaves the current state untouched. A snapshot belonging to a
// different owner is rejected.
func (s *XidService) Restore(snap Snapshot) error {
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	owner, err := principal.Parse(snap.Owner)
	if err != nil {
		return fmt.Errorf("snapshot owner: %w", err)
	}
	ids, err := ledger.FromSnapshot(s.mode, snap.Ledger)
	if err != nil {
		return err
	}
	store, err := content.FromSnapshot(snap.Content)
	if err != nil {
		return err
	}
	next := &state{
		owner:     owner,
		name:      snap.Name,
		avatarURL: snap.AvatarURL,
		avatar:    snap.Avatar,
		ids:       ids,
		ticket:    snap.Ticket,
		content:   store,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !owner.Equal(s.st.owner) {
		return fmt.Errorf("snapshot belongs to %s, service is configured for %s", owner, s.st.owner)
	}
	s.st = next
	s.recordBoundLocked()
	return nil
}

// Save writes the current state to store, followed by the replay guard
// when one is set.
func (s *XidService) Save(ctx context.Context, store snapshot.Store) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := store.Save(ctx, SnapshotName, data); err != nil {
		return err
	}
	if s.guard != nil {
		if err := s.guard.SaveTo(ctx, store, ReplaySnapshotName); err != nil {
			return fmt.Errorf("save replay guard: %w", err)
		}
	}
	return nil
}

// Load restores state from store. It returns false with a nil error when
// store holds no snapshot; an unreadable or invalid snapshot is an error.
// The replay guard, when set, is restored first so that consumed
// identifiers survive even if the XID state itself was never saved.
func (s *XidService) Load(ctx context.Context, store snapshot.Store) (bool, error) {
	if s.guard != nil {
		if _, err := s.guard.LoadFrom(ctx, store, ReplaySnapshotName); err != nil {
			return false, fmt.Errorf("restore replay guard: %w", err)
		}
	}
	data, err := store.Load(ctx, SnapshotName)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Restore(snap); err != nil {
		return false, fmt.Errorf("restore snapshot: %w", err)
	}
	s.logger.Info("xid state restored",
		zap.Int("identities", len(snap.Ledger.IDs)),
		zap.Bool("pending_ticket", snap.Ticket != ""),
	)
	return true, nil
}
