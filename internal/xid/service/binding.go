package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/internal/principal"
	"github.com/jmerrifield20/NexusXID/internal/trustledger"
	"github.com/jmerrifield20/NexusXID/internal/upstream"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
	"go.uber.org/zap"
)

// SubmitAttestation binds the identity carried by a signed envelope.
// The verifier consumes the envelope's uuid, the registry records the
// claim, and only then is the identity added locally.
func (s *XidService) SubmitAttestation(ctx context.Context, caller principal.Principal, env attest.Envelope) (model.Identity, error) {
	id, err := s.submitAttestation(ctx, caller, env)
	s.recordBinding(ProtocolAttested, err)
	return id, err
}

func (s *XidService) submitAttestation(ctx context.Context, caller principal.Principal, env attest.Envelope) (model.Identity, error) {
	s.mu.Lock()
	err := s.authorizeOwner(caller)
	s.mu.Unlock()
	if err != nil {
		return model.Identity{}, err
	}

	payload, err := s.verifier.Verify(ctx, env)
	if err != nil {
		if attest.Code(err) != "" {
			return model.Identity{}, err
		}
		return model.Identity{}, &model.UpstreamError{Op: "verify", Kind: model.KindTransport, Err: err}
	}

	id := model.Identity{Platform: payload.Platform, Identity: payload.Identity, BindTime: s.stamp()}
	if err := s.commitBind(ctx, caller, id, ProtocolAttested); err != nil {
		return model.Identity{}, err
	}
	s.logger.Info("identity bound",
		zap.String("protocol", ProtocolAttested),
		zap.String("platform", id.Platform),
		zap.String("identity", id.Identity),
		zap.String("uuid", payload.UUID),
	)
	return id, nil
}

// RequestHostBinding stores text as the pending ticket, replacing any
// earlier unconsumed ticket. text is not validated until confirmation.
func (s *XidService) RequestHostBinding(ctx context.Context, caller principal.Principal, text string) error {
	s.mu.Lock()
	if err := s.authorizeOwner(caller); err != nil {
		s.mu.Unlock()
		return err
	}
	replaced := s.st.ticket != ""
	s.st.ticket = text
	s.mu.Unlock()

	s.logger.Info("host binding requested",
		zap.String("ticket", text),
		zap.Bool("replaced_pending", replaced),
	)
	s.appendAudit(ctx, trustledger.ActionHostBindingRequest, caller, map[string]string{"ticket": text})
	return nil
}

// ConfirmHostBinding binds the caller's own principal when it matches the
// pending ticket. The ticket is consumed by every attempt, whether or not
// it succeeds.
func (s *XidService) ConfirmHostBinding(ctx context.Context, caller principal.Principal) (model.Identity, error) {
	id, err := s.confirmHostBinding(ctx, caller)
	s.recordBinding(ProtocolHostPrincipal, err)
	return id, err
}

func (s *XidService) confirmHostBinding(ctx context.Context, caller principal.Principal) (model.Identity, error) {
	s.mu.Lock()
	ticket := s.st.ticket
	s.st.ticket = ""
	s.mu.Unlock()

	if ticket == "" {
		return model.Identity{}, fmt.Errorf("%w: no pending ticket", model.ErrVerification)
	}
	want, err := principal.Parse(ticket)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", model.ErrPrincipal, err)
	}
	if caller.IsAnonymous() || !want.Equal(caller) {
		s.logger.Warn("host binding rejected",
			zap.String("ticket", ticket),
			zap.String("caller", caller.String()),
		)
		return model.Identity{}, model.ErrVerification
	}

	id := model.Identity{Platform: model.PlatformHostPrincipal, Identity: want.String(), BindTime: s.stamp()}
	if err := s.commitBind(ctx, caller, id, ProtocolHostPrincipal); err != nil {
		return model.Identity{}, err
	}
	s.logger.Info("identity bound",
		zap.String("protocol", ProtocolHostPrincipal),
		zap.String("identity", id.Identity),
	)
	return id, nil
}

// commitBind claims id at the registry and, on acceptance, adds it locally.
func (s *XidService) commitBind(ctx context.Context, actor principal.Principal, id model.Identity, protocol string) error {
	owner := s.Owner().String()
	if err := s.registry.Put(ctx, owner, id.Simple()); err != nil {
		return mapRegistryError("put", err)
	}

	s.mu.Lock()
	err := s.st.ids.Bind(id)
	s.recordBoundLocked()
	s.mu.Unlock()
	if err != nil {
		// The registry accepted a claim the local ledger already holds.
		s.logger.Warn("registry accepted identity already bound locally",
			zap.String("platform", id.Platform),
			zap.String("identity", id.Identity),
		)
		return err
	}

	s.appendAudit(ctx, trustledger.ActionBind, actor, map[string]string{
		"protocol":  protocol,
		"platform":  id.Platform,
		"identity":  id.Identity,
		"bind_time": id.BindTime,
	})
	return nil
}

// Unbind removes id locally and then releases it at the registry. A
// registry failure is returned to the caller but the local removal stands.
func (s *XidService) Unbind(ctx context.Context, caller principal.Principal, id model.Identity) error {
	err := s.unbind(ctx, caller, id)
	s.recordBinding(ProtocolUnbind, err)
	return err
}

func (s *XidService) unbind(ctx context.Context, caller principal.Principal, id model.Identity) error {
	s.mu.Lock()
	if err := s.authorizeOwner(caller); err != nil {
		s.mu.Unlock()
		return err
	}
	stored, ok := s.st.ids.Lookup(id)
	if !ok {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	wasMain, err := s.st.ids.Unbind(stored)
	s.recordBoundLocked()
	owner := s.st.owner.String()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.appendAudit(ctx, trustledger.ActionUnbind, caller, map[string]any{
		"platform": stored.Platform,
		"identity": stored.Identity,
		"was_main": wasMain,
	})

	if err := s.registry.Delete(ctx, owner, stored.Simple()); err != nil {
		s.logger.Error("registry delete failed after local unbind; local and registry state diverge",
			zap.String("platform", stored.Platform),
			zap.String("identity", stored.Identity),
			zap.Error(err),
		)
		if s.recorder != nil {
			s.recorder.Divergence("unbind")
		}
		return mapRegistryError("delete", err)
	}
	return nil
}

// ChangeMain makes a bound identity the main identity.
func (s *XidService) ChangeMain(ctx context.Context, caller principal.Principal, id model.Identity) (model.Identity, error) {
	s.mu.Lock()
	if err := s.authorizeOwner(caller); err != nil {
		s.mu.Unlock()
		return model.Identity{}, err
	}
	if err := s.st.ids.ChangeMain(id); err != nil {
		s.mu.Unlock()
		return model.Identity{}, err
	}
	current := s.st.ids.Main()
	s.mu.Unlock()

	s.appendAudit(ctx, trustledger.ActionChangeMain, caller, map[string]string{
		"platform": current.Platform,
		"identity": current.Identity,
	})
	return current, nil
}

// mapRegistryError converts a registry failure to the local taxonomy.
func mapRegistryError(op string, err error) error {
	var re *upstream.RegistryError
	if !errors.As(err, &re) {
		return &model.UpstreamError{Op: op, Kind: model.KindTransport, Err: err}
	}
	switch re.Kind {
	case model.KindConflict:
		return fmt.Errorf("%w: registry reports an existing claim", model.ErrAlreadyBound)
	case model.KindNotFound:
		return fmt.Errorf("%w: registry has no such claim", model.ErrNotFound)
	}
	return &model.UpstreamError{Op: op, Kind: re.Kind, Err: err}
}

// resultLabel classifies err for metrics.
func resultLabel(err error) string {
	var ue *model.UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, attest.ErrReplay):
		return "replay"
	case errors.Is(err, attest.ErrVerify), errors.Is(err, attest.ErrMsgDecode),
		errors.Is(err, attest.ErrSigDecode), errors.Is(err, model.ErrVerification):
		return "rejected"
	case errors.Is(err, model.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, model.ErrAlreadyBound):
		return "conflict"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.As(err, &ue):
		return "upstream"
	}
	return "error"
}
