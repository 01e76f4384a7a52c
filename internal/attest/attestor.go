// Package attest validates relayed binding attestations: a JSON payload
// signed by one trusted secp256k1 key, carrying a one-time uuid.
package attest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/jmerrifield20/NexusXID/internal/replay"
	"github.com/jmerrifield20/NexusXID/internal/sigverify"
	"go.uber.org/zap"
)

// Envelope is the signed message submitted by a binding client.
// Msg is the raw payload JSON exactly as signed; Sig is base64.
type Envelope struct {
	Msg string `json:"msg" binding:"required"`
	Sig string `json:"sig" binding:"required"`
}

// Payload is the decoded content of Envelope.Msg.
type Payload struct {
	Action    string `json:"action"`
	CreatedAt string `json:"created_at"`
	Identity  string `json:"identity"`
	Persona   string `json:"persona,omitempty"`
	Platform  string `json:"platform"`
	UUID      string `json:"uuid"`
}

// Attestor verifies envelopes against a fixed trusted key and rejects
// reused uuids. It is safe for concurrent use.
type Attestor struct {
	trustedKey []byte
	guard      *replay.Guard
	logger     *zap.Logger
}

// New creates an Attestor. trustedKey is a public-key field accepted by
// sigverify.Verify (65, 64 or 33 bytes).
func New(trustedKey []byte, guard *replay.Guard, logger *zap.Logger) (*Attestor, error) {
	switch len(trustedKey) {
	case sigverify.FullPublicKeySize, sigverify.RawPublicKeySize, sigverify.CompressedPublicKeySize:
	default:
		return nil, fmt.Errorf("trusted key must be 65, 64 or 33 bytes, got %d", len(trustedKey))
	}
	if guard == nil {
		guard = replay.New()
	}
	return &Attestor{trustedKey: append([]byte(nil), trustedKey...), guard: guard, logger: logger}, nil
}

// Guard exposes the replay guard for snapshotting.
func (a *Attestor) Guard() *replay.Guard { return a.guard }

// Verify decodes env, consumes its uuid, and checks the signature over the
// raw payload text. The uuid is consumed before the signature check, so a
// badly signed envelope still burns its uuid.
func (a *Attestor) Verify(_ context.Context, env Envelope) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(env.Msg), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMsgDecode, err)
	}
	if p.UUID == "" || p.Platform == "" || p.Identity == "" {
		return nil, fmt.Errorf("%w: uuid, platform and identity are required", ErrMsgDecode)
	}

	if !a.guard.CheckAndConsume(p.UUID) {
		a.logger.Warn("attestation replay rejected", zap.String("uuid", p.UUID))
		return nil, fmt.Errorf("%w: %s", ErrReplay, p.UUID)
	}

	sig, err := base64.StdEncoding.DecodeString(env.Sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigDecode, err)
	}
	if len(sig) < sigverify.SignatureSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrSigDecode, len(sig), sigverify.SignatureSize)
	}

	if !sigverify.Verify([]byte(env.Msg), sig[:sigverify.SignatureSize], a.trustedKey) {
		return nil, ErrVerify
	}

	a.logger.Info("attestation verified",
		zap.String("uuid", p.UUID),
		zap.String("platform", p.Platform),
		zap.String("action", p.Action),
	)
	return &p, nil
}
