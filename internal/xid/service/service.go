// Package service implements the XID: one owner's bound identities, the
// two binding protocols, unbinding, profile and content management.
//
// All mutable state lives in a single state value guarded by XidService.mu.
// The lock covers synchronous sections only. It is released before every
// call to the verifier or the registry, so other requests may run while a
// binding waits on an upstream response.
package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/internal/principal"
	"github.com/jmerrifield20/NexusXID/internal/replay"
	"github.com/jmerrifield20/NexusXID/internal/trustledger"
	"github.com/jmerrifield20/NexusXID/internal/xid/content"
	"github.com/jmerrifield20/NexusXID/internal/xid/ledger"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
	"go.uber.org/zap"
)

// Verifier validates a signed attestation envelope and returns its payload.
// *attest.Attestor and *upstream.VerifierClient satisfy this interface.
type Verifier interface {
	Verify(ctx context.Context, env attest.Envelope) (*attest.Payload, error)
}

// Registry is the external service of record for identity ownership.
// *upstream.RegistryClient and *upstream.MemoryRegistry satisfy this interface.
type Registry interface {
	Put(ctx context.Context, owner string, id model.SimpleID) error
	Delete(ctx context.Context, owner string, id model.SimpleID) error
}

// Recorder receives binding outcomes for metrics. Implementations must be
// safe for concurrent use.
type Recorder interface {
	Binding(protocol, result string)
	Divergence(op string)
	BoundIdentities(n int)
}

// Binding protocol labels passed to Recorder.Binding.
const (
	ProtocolAttested      = "attested"
	ProtocolHostPrincipal = "host_principal"
	ProtocolUnbind        = "unbind"
)

type state struct {
	owner     principal.Principal
	name      string
	avatarURL string
	avatar    model.Avatar
	ids       *ledger.Ledger
	ticket    string
	content   *content.Store
}

// XidService is the XID of a single owner.
type XidService struct {
	mu       sync.Mutex
	st       *state
	mode     ledger.KeyMode
	verifier Verifier
	registry Registry
	audit    trustledger.Ledger // nil = no audit trail
	recorder Recorder           // nil = no metrics
	guard    *replay.Guard      // in-process verifier state; nil when remote
	now      func() time.Time
	logger   *zap.Logger
}

// New creates an empty XID owned by owner.
func New(owner principal.Principal, verifier Verifier, registry Registry, mode ledger.KeyMode, logger *zap.Logger) *XidService {
	return &XidService{
		st:       newState(owner, mode),
		mode:     mode,
		verifier: verifier,
		registry: registry,
		now:      time.Now,
		logger:   logger,
	}
}

func newState(owner principal.Principal, mode ledger.KeyMode) *state {
	return &state{owner: owner, ids: ledger.New(mode), content: content.New()}
}

// SetAudit configures the audit trail for binding events.
func (s *XidService) SetAudit(l trustledger.Ledger) {
	s.audit = l
}

// SetRecorder configures the metrics recorder.
func (s *XidService) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetReplayGuard makes Save and Load persist guard alongside the XID
// state. Use it when the verifier runs in-process.
func (s *XidService) SetReplayGuard(g *replay.Guard) {
	s.guard = g
}

// SetClock replaces the wall clock used for bind, upload and mint times.
func (s *XidService) SetClock(now func() time.Time) {
	s.now = now
}

// Owner returns the owner principal.
func (s *XidService) Owner() principal.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.owner
}

// stamp formats the current time in Unix nanoseconds.
func (s *XidService) stamp() string {
	return strconv.FormatInt(s.now().UnixNano(), 10)
}

// authorizeOwner must be called with s.mu held.
func (s *XidService) authorizeOwner(caller principal.Principal) error {
	if !caller.Equal(s.st.owner) {
		return model.ErrUnauthorized
	}
	return nil
}

// appendAudit records an event in the audit trail in a non-fatal manner.
func (s *XidService) appendAudit(ctx context.Context, action string, actor principal.Principal, payload any) {
	if s.audit == nil {
		return
	}
	ev := trustledger.Event{
		Subject: s.Owner().String(),
		Action:  action,
		Actor:   actor.String(),
		Payload: payload,
	}
	if _, err := s.audit.Append(ctx, ev); err != nil {
		s.logger.Error("audit append failed (non-fatal)",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (s *XidService) recordBinding(protocol string, err error) {
	if s.recorder != nil {
		s.recorder.Binding(protocol, resultLabel(err))
	}
}

// recordBoundLocked must be called with s.mu held.
func (s *XidService) recordBoundLocked() {
	if s.recorder != nil {
		s.recorder.BoundIdentities(s.st.ids.Len())
	}
}

// GetXid returns the public identity summary.
func (s *XidService) GetXid() model.Xid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Xid{
		Owner:     s.st.owner.String(),
		Name:      s.st.name,
		MainID:    s.st.ids.Main(),
		IDs:       s.st.ids.List(),
		AvatarURL: s.st.avatarURL,
	}
}

// GetMainID returns the main identity, or the empty sentinel.
func (s *XidService) GetMainID() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ids.Main()
}

// Version returns the service interface version.
func (s *XidService) Version() uint8 { return model.Version }
