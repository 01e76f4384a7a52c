package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/internal/principal"
	"github.com/jmerrifield20/NexusXID/internal/replay"
	"github.com/jmerrifield20/NexusXID/internal/snapshot"
	"github.com/jmerrifield20/NexusXID/internal/trustledger"
	"github.com/jmerrifield20/NexusXID/internal/upstream"
	"github.com/jmerrifield20/NexusXID/internal/xid/ledger"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
	"github.com/jmerrifield20/NexusXID/internal/xid/service"
	"go.uber.org/zap"
)

var ctx = context.Background()

// ── Stubs ────────────────────────────────────────────────────────────────

// countingRegistry wraps a MemoryRegistry, counts calls and can be told to
// fail the next call.
type countingRegistry struct {
	*upstream.MemoryRegistry
	mu      sync.Mutex
	puts    int
	deletes int
	failErr error
}

func (r *countingRegistry) Put(ctx context.Context, owner string, id model.SimpleID) error {
	r.mu.Lock()
	r.puts++
	err := r.failErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryRegistry.Put(ctx, owner, id)
}

func (r *countingRegistry) Delete(ctx context.Context, owner string, id model.SimpleID) error {
	r.mu.Lock()
	r.deletes++
	err := r.failErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryRegistry.Delete(ctx, owner, id)
}

type failingVerifier struct{ err error }

func (v failingVerifier) Verify(context.Context, attest.Envelope) (*attest.Payload, error) {
	return nil, v.err
}

type recorder struct {
	mu          sync.Mutex
	results     map[string][]string
	divergences int
	bound       int
}

func (r *recorder) Binding(protocol, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string][]string{}
	}
	r.results[protocol] = append(r.results[protocol], result)
}

func (r *recorder) Divergence(string) {
	r.mu.Lock()
	r.divergences++
	r.mu.Unlock()
}

func (r *recorder) BoundIdentities(n int) {
	r.mu.Lock()
	r.bound = n
	r.mu.Unlock()
}

// ── Fixture ──────────────────────────────────────────────────────────────

type fixture struct {
	svc      *service.XidService
	registry *countingRegistry
	signer   *btcec.PrivateKey
	owner    principal.Principal
	audit    *trustledger.MemoryLedger
	rec      *recorder
}

func mustPrincipal(t *testing.T, b ...byte) principal.Principal {
	t.Helper()
	p, err := principal.FromBytes(b)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func newFixture(t *testing.T, mode ledger.KeyMode) *fixture {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	a, err := attest.New(key.PubKey().SerializeCompressed(), nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	reg := &countingRegistry{MemoryRegistry: upstream.NewMemoryRegistry()}
	owner := mustPrincipal(t, 0x0a, 0x0b, 0x0c, 0x01)
	svc := service.New(owner, a, reg, mode, zap.NewNop())

	tick := int64(1_700_000_000_000_000_000)
	svc.SetClock(func() time.Time {
		tick++
		return time.Unix(0, tick)
	})
	audit := trustledger.New()
	svc.SetAudit(audit)
	rec := &recorder{}
	svc.SetRecorder(rec)

	return &fixture{svc: svc, registry: reg, signer: key, owner: owner, audit: audit, rec: rec}
}

func (f *fixture) envelope(t *testing.T, platform, identity, uuid string) attest.Envelope {
	t.Helper()
	env, err := attest.SignEnvelope(f.signer, attest.Payload{
		Action:    "bind",
		CreatedAt: "1700000000",
		Platform:  platform,
		Identity:  identity,
		UUID:      uuid,
	})
	if err != nil {
		t.Fatal(err)
	}
	return env
}

// ── Attested-message binding ─────────────────────────────────────────────

func TestSubmitAttestation_bindsAndSetsMain(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)

	id, err := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-1"))
	if err != nil {
		t.Fatalf("SubmitAttestation: %v", err)
	}
	if id.Platform != "twitter" || id.Identity != "alice" || id.BindTime == "" {
		t.Errorf("unexpected identity: %+v", id)
	}

	x := f.svc.GetXid()
	if len(x.IDs) != 1 || x.IDs[0] != id {
		t.Errorf("ledger: got %+v", x.IDs)
	}
	if f.svc.GetMainID() != id {
		t.Errorf("first bound identity must become main, got %+v", f.svc.GetMainID())
	}
	if owner, ok := f.registry.Owner(id.Simple()); !ok || owner != f.owner.String() {
		t.Errorf("registry claim: %q %v", owner, ok)
	}
	if f.rec.bound != 1 {
		t.Errorf("bound gauge: got %d, want 1", f.rec.bound)
	}
	if n, _ := f.audit.Len(ctx); n != 2 {
		t.Errorf("audit entries: got %d, want genesis + bind", n)
	}
}

func TestSubmitAttestation_replayRejectedBeforeRegistry(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	env := f.envelope(t, "twitter", "alice", "u-2")

	if _, err := f.svc.SubmitAttestation(ctx, f.owner, env); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := f.svc.SubmitAttestation(ctx, f.owner, env)
	if !errors.Is(err, attest.ErrReplay) {
		t.Fatalf("expected ErrReplay, got %v", err)
	}
	if f.registry.puts != 1 {
		t.Errorf("registry puts: got %d, want 1", f.registry.puts)
	}
	if got := f.rec.results[service.ProtocolAttested]; len(got) != 2 || got[1] != "replay" {
		t.Errorf("recorded results: %v", got)
	}
}

func TestSubmitAttestation_nonOwner(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	stranger := mustPrincipal(t, 0x99)

	_, err := f.svc.SubmitAttestation(ctx, stranger, f.envelope(t, "twitter", "alice", "u-3"))
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// The uuid was never presented to the verifier.
	if _, err := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-3")); err != nil {
		t.Fatalf("owner submit with same uuid: %v", err)
	}
}

func TestSubmitAttestation_badSignature(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	other, _ := btcec.NewPrivateKey()
	env, _ := attest.SignEnvelope(other, attest.Payload{Platform: "twitter", Identity: "alice", UUID: "u-4"})

	if _, err := f.svc.SubmitAttestation(ctx, f.owner, env); !errors.Is(err, attest.ErrVerify) {
		t.Fatalf("expected ErrVerify, got %v", err)
	}
	if f.registry.puts != 0 || len(f.svc.GetXid().IDs) != 0 {
		t.Error("nothing may be recorded for a bad signature")
	}
}

func TestSubmitAttestation_registryConflict(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	f.registry.MemoryRegistry.Put(ctx, "someone-else", model.SimpleID{Platform: "twitter", Identity: "alice"})

	_, err := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-5"))
	if !errors.Is(err, model.ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
	if len(f.svc.GetXid().IDs) != 0 {
		t.Error("ledger must not change when the registry rejects")
	}
}

func TestSubmitAttestation_registryOtherKind(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	f.registry.failErr = &upstream.RegistryError{Kind: model.KindInvalidPlatform}

	_, err := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "myspace", "tom", "u-6"))
	var ue *model.UpstreamError
	if !errors.As(err, &ue) || ue.Kind != model.KindInvalidPlatform || ue.Op != "put" {
		t.Fatalf("expected UpstreamError{put, invalid_platform}, got %v", err)
	}
}

func TestSubmitAttestation_registryTransport(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	f.registry.failErr = errors.New("connection refused")

	_, err := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-7"))
	var ue *model.UpstreamError
	if !errors.As(err, &ue) || ue.Kind != model.KindTransport {
		t.Fatalf("expected transport UpstreamError, got %v", err)
	}
	if len(f.svc.GetXid().IDs) != 0 {
		t.Error("ledger must not change on transport failure")
	}
}

func TestSubmitAttestation_verifierTransport(t *testing.T) {
	owner := mustPrincipal(t, 1)
	svc := service.New(owner, failingVerifier{err: errors.New("dial tcp: timeout")}, upstream.NewMemoryRegistry(), ledger.KeyTuple, zap.NewNop())

	_, err := svc.SubmitAttestation(ctx, owner, attest.Envelope{Msg: "{}", Sig: "AA=="})
	var ue *model.UpstreamError
	if !errors.As(err, &ue) || ue.Op != "verify" {
		t.Fatalf("expected verify UpstreamError, got %v", err)
	}
}

// ── Host-principal binding ───────────────────────────────────────────────

func TestHostBinding_mismatchClearsTicketThenMatchBinds(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	intended := mustPrincipal(t, 0x20, 0x21)
	impostor := mustPrincipal(t, 0x30)

	if err := f.svc.RequestHostBinding(ctx, f.owner, intended.String()); err != nil {
		t.Fatalf("RequestHostBinding: %v", err)
	}
	if _, err := f.svc.ConfirmHostBinding(ctx, impostor); !errors.Is(err, model.ErrVerification) {
		t.Fatalf("impostor confirm: expected ErrVerification, got %v", err)
	}
	// The ticket was consumed by the failed attempt.
	if _, err := f.svc.ConfirmHostBinding(ctx, intended); !errors.Is(err, model.ErrVerification) {
		t.Fatalf("confirm after cleared ticket: expected ErrVerification, got %v", err)
	}
	if f.registry.puts != 0 {
		t.Fatalf("no registry call expected, got %d", f.registry.puts)
	}

	if err := f.svc.RequestHostBinding(ctx, f.owner, intended.String()); err != nil {
		t.Fatal(err)
	}
	id, err := f.svc.ConfirmHostBinding(ctx, intended)
	if err != nil {
		t.Fatalf("ConfirmHostBinding: %v", err)
	}
	if id.Platform != model.PlatformHostPrincipal || id.Identity != intended.String() {
		t.Errorf("unexpected identity: %+v", id)
	}
	if f.svc.GetMainID() != id {
		t.Error("first bound identity must become main")
	}
	if f.svc.Snapshot().Ticket != "" {
		t.Error("ticket must be cleared after success")
	}
}

func TestHostBinding_requestOverwrites(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	first, second := mustPrincipal(t, 0x40), mustPrincipal(t, 0x41)

	f.svc.RequestHostBinding(ctx, f.owner, first.String())
	f.svc.RequestHostBinding(ctx, f.owner, second.String())

	if _, err := f.svc.ConfirmHostBinding(ctx, first); !errors.Is(err, model.ErrVerification) {
		t.Fatalf("overwritten ticket: expected ErrVerification, got %v", err)
	}
}

func TestHostBinding_malformedTicket(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	f.svc.RequestHostBinding(ctx, f.owner, "not a principal")

	_, err := f.svc.ConfirmHostBinding(ctx, mustPrincipal(t, 1))
	if !errors.Is(err, model.ErrPrincipal) {
		t.Fatalf("expected ErrPrincipal, got %v", err)
	}
	if !errors.Is(err, model.ErrVerification) {
		t.Errorf("malformed ticket is a verification failure, got %v", err)
	}
	if f.svc.Snapshot().Ticket != "" {
		t.Error("malformed ticket must still be cleared")
	}
}

func TestHostBinding_requestNonOwner(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	stranger := mustPrincipal(t, 0x50)
	if err := f.svc.RequestHostBinding(ctx, stranger, stranger.String()); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestHostBinding_anonymousRejected(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	f.svc.RequestHostBinding(ctx, f.owner, principal.Anonymous.String())
	if _, err := f.svc.ConfirmHostBinding(ctx, principal.Anonymous); !errors.Is(err, model.ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
}

// ── Unbind / change main ─────────────────────────────────────────────────

func TestUnbind_mainClearedNoPromotion(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	a, _ := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-10"))
	b, _ := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "github", "alice", "u-11"))

	if err := f.svc.Unbind(ctx, f.owner, model.Identity{Platform: a.Platform, Identity: a.Identity}); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if !f.svc.GetMainID().IsEmpty() {
		t.Errorf("main must be cleared, got %+v", f.svc.GetMainID())
	}
	ids := f.svc.GetXid().IDs
	if len(ids) != 1 || ids[0] != b {
		t.Errorf("remaining ids: %+v", ids)
	}
	if _, ok := f.registry.Owner(a.Simple()); ok {
		t.Error("registry claim must be released")
	}
}

func TestUnbind_notFound(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	err := f.svc.Unbind(ctx, f.owner, model.Identity{Platform: "twitter", Identity: "ghost"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if f.registry.deletes != 0 {
		t.Error("registry must not be called for an unknown identity")
	}
}

func TestUnbind_registryFailureKeepsLocalRemoval(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	a, _ := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-12"))
	f.registry.failErr = errors.New("connection reset")

	err := f.svc.Unbind(ctx, f.owner, a)
	var ue *model.UpstreamError
	if !errors.As(err, &ue) || ue.Op != "delete" {
		t.Fatalf("expected delete UpstreamError, got %v", err)
	}
	if len(f.svc.GetXid().IDs) != 0 {
		t.Error("local removal must not be rolled back")
	}
	if f.rec.divergences != 1 {
		t.Errorf("divergences: got %d, want 1", f.rec.divergences)
	}
}

func TestUnbind_nonOwner(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	a, _ := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-13"))
	if err := f.svc.Unbind(ctx, mustPrincipal(t, 0x77), a); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(f.svc.GetXid().IDs) != 1 {
		t.Error("unauthorized unbind must not change state")
	}
}

func TestChangeMain(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-14"))
	b, _ := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "github", "alice", "u-15"))

	got, err := f.svc.ChangeMain(ctx, f.owner, model.Identity{Platform: "github", Identity: "alice"})
	if err != nil {
		t.Fatalf("ChangeMain: %v", err)
	}
	if got != b || f.svc.GetMainID() != b {
		t.Errorf("main: got %+v, want %+v", f.svc.GetMainID(), b)
	}
	if _, err := f.svc.ChangeMain(ctx, f.owner, model.Identity{Platform: "gitlab", Identity: "alice"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConcatMode_aliasedBindRejectedLocally(t *testing.T) {
	f := newFixture(t, ledger.KeyConcat)
	if _, err := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "ab", "c", "u-16")); err != nil {
		t.Fatal(err)
	}
	// The registry sees a distinct pair and accepts it; the ledger treats
	// it as the same identity.
	_, err := f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "a", "bc", "u-17"))
	if !errors.Is(err, model.ErrAlreadyBound) {
		t.Fatalf("expected ErrAlreadyBound, got %v", err)
	}
}

// ── Profile and content ──────────────────────────────────────────────────

func TestProfileAndAvatar(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	name, url := "Alice", "https://example.com/a.png"

	if err := f.svc.SetProfile(mustPrincipal(t, 0x01), model.ProfileUpdate{Name: &name}); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.svc.SetProfile(f.owner, model.ProfileUpdate{Name: &name}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.SetProfile(f.owner, model.ProfileUpdate{AvatarURL: &url}); err != nil {
		t.Fatal(err)
	}
	x := f.svc.GetXid()
	if x.Name != name || x.AvatarURL != url {
		t.Errorf("profile: %+v", x)
	}

	if _, ok := f.svc.Avatar(); ok {
		t.Error("no avatar expected yet")
	}
	if err := f.svc.UploadAvatar(f.owner, model.Avatar{Data: []byte{0x89, 'P', 'N', 'G'}, Type: "image/png"}); err != nil {
		t.Fatal(err)
	}
	if a, ok := f.svc.Avatar(); !ok || a.Type != "image/png" {
		t.Errorf("avatar: %+v %v", a, ok)
	}
	if err := f.svc.UploadAvatar(f.owner, model.Avatar{Type: "image/png"}); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("empty avatar: expected ErrInvalidArgument, got %v", err)
	}
}

func TestContent(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	arg := model.StoreArg{UUID: "c1", Content: model.Content{Twitter: &model.TwitterContent{URL: "u"}}}

	if err := f.svc.UploadContent(mustPrincipal(t, 0x01), arg); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.svc.UploadContent(f.owner, arg); err != nil {
		t.Fatal(err)
	}
	ref := model.ContentUUID{ContentType: model.ContentTwitter, UUID: "c1"}
	if err := f.svc.MintContent(f.owner, ref); err != nil {
		t.Fatal(err)
	}
	items := f.svc.ContentLookup([]model.ContentUUID{ref})
	if len(items) != 1 || items[0].Owner != f.owner.String() || !items[0].IsMinted {
		t.Errorf("stored item: %+v", items)
	}
	if n, _ := f.svc.ContentSize(model.ContentTwitter); n != 1 {
		t.Errorf("size: %d", n)
	}
	if _, err := f.svc.ContentPage(model.ContentTwitter, 1, 10); !errors.Is(err, model.ErrFieldOutOfRange) {
		t.Errorf("expected ErrFieldOutOfRange, got %v", err)
	}
	if err := f.svc.DeleteContent(f.owner, ref); err != nil {
		t.Fatal(err)
	}
}

// ── Snapshot ─────────────────────────────────────────────────────────────

func TestSnapshot_roundTripThroughStore(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	name := "Alice"
	f.svc.SetProfile(f.owner, model.ProfileUpdate{Name: &name})
	f.svc.UploadAvatar(f.owner, model.Avatar{Data: []byte("img"), Type: "image/gif"})
	f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-20"))
	f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "github", "alice", "u-21"))
	f.svc.ChangeMain(ctx, f.owner, model.Identity{Platform: "github", Identity: "alice"})
	f.svc.UploadContent(f.owner, model.StoreArg{UUID: "c1", Content: model.Content{OffChain: &model.OffChainContent{URL: "x"}}})
	guest := mustPrincipal(t, 0x61)
	f.svc.RequestHostBinding(ctx, f.owner, guest.String())

	store, err := snapshot.NewFileStore(filepath.Join(t.TempDir(), "snap"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Save(ctx, store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restoredSvc := service.New(f.owner, nil, upstream.NewMemoryRegistry(), ledger.KeyTuple, zap.NewNop())
	ok, err := restoredSvc.Load(ctx, store)
	if err != nil || !ok {
		t.Fatalf("Load: %v %v", ok, err)
	}

	want, got := f.svc.GetXid(), restoredSvc.GetXid()
	if got.Name != want.Name || got.MainID != want.MainID || len(got.IDs) != len(want.IDs) {
		t.Errorf("restored xid: got %+v, want %+v", got, want)
	}
	if a, ok := restoredSvc.Avatar(); !ok || string(a.Data) != "img" {
		t.Error("avatar not restored")
	}
	if n, _ := restoredSvc.ContentSize(model.ContentOffChain); n != 1 {
		t.Error("content not restored")
	}
	// The pending ticket survives the restart.
	if _, err := restoredSvc.ConfirmHostBinding(ctx, guest); err != nil {
		t.Fatalf("confirm after restore: %v", err)
	}
}

func TestLoad_consumedUUIDSurvivesRestart(t *testing.T) {
	key, _ := btcec.NewPrivateKey()
	owner := mustPrincipal(t, 0x0a, 0x0b, 0x0c, 0x01)
	reg := upstream.NewMemoryRegistry()
	store, err := snapshot.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	boot := func() *service.XidService {
		guard := replay.New()
		a, err := attest.New(key.PubKey().SerializeCompressed(), guard, zap.NewNop())
		if err != nil {
			t.Fatal(err)
		}
		svc := service.New(owner, a, reg, ledger.KeyTuple, zap.NewNop())
		svc.SetReplayGuard(guard)
		if _, err := svc.Load(ctx, store); err != nil {
			t.Fatalf("Load: %v", err)
		}
		return svc
	}
	env, _ := attest.SignEnvelope(key, attest.Payload{
		Action: "bind", CreatedAt: "1700000000", Platform: "twitter", Identity: "alice", UUID: "u-restart",
	})

	first := boot()
	id, err := first.SubmitAttestation(ctx, owner, env)
	if err != nil {
		t.Fatalf("SubmitAttestation: %v", err)
	}
	if err := first.Unbind(ctx, owner, id); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if err := first.Save(ctx, store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := boot()
	if _, err := second.SubmitAttestation(ctx, owner, env); !errors.Is(err, attest.ErrReplay) {
		t.Fatalf("resubmit after restart: expected ErrReplay, got %v", err)
	}
	if ids := second.GetXid().IDs; len(ids) != 0 {
		t.Errorf("replayed envelope rebound an identity: %+v", ids)
	}
}

func TestLoad_noSnapshot(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	ok, err := f.svc.Load(ctx, snapshot.Nop{})
	if err != nil || ok {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestLoad_corruptSnapshotIsError(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	store, _ := snapshot.NewFileStore(t.TempDir())
	store.Save(ctx, service.SnapshotName, []byte("{truncated"))

	if _, err := f.svc.Load(ctx, store); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestRestore_invalidLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-30"))
	good := f.svc.Snapshot()

	bad := good
	bad.Ledger.Main = model.Identity{Platform: "nowhere", Identity: "x"}
	if err := f.svc.Restore(bad); err == nil {
		t.Fatal("expected error for non-member main")
	}

	other := good
	other.Owner = mustPrincipal(t, 0x55).String()
	if err := f.svc.Restore(other); err == nil {
		t.Fatal("expected error for foreign owner")
	}

	wrongVersion := good
	wrongVersion.Version = 99
	if err := f.svc.Restore(wrongVersion); err == nil {
		t.Fatal("expected error for unknown version")
	}

	if len(f.svc.GetXid().IDs) != 1 || f.svc.GetMainID().Identity != "alice" {
		t.Error("failed restores must leave state untouched")
	}
}

func TestRestore_replacesNotMerges(t *testing.T) {
	f := newFixture(t, ledger.KeyTuple)
	empty := f.svc.Snapshot()
	f.svc.SubmitAttestation(ctx, f.owner, f.envelope(t, "twitter", "alice", "u-31"))

	if err := f.svc.Restore(empty); err != nil {
		t.Fatal(err)
	}
	if len(f.svc.GetXid().IDs) != 0 {
		t.Error("restore must replace the whole state")
	}
	if f.rec.bound != 0 {
		t.Errorf("bound gauge after restore: %d", f.rec.bound)
	}
}
