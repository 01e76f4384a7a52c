package client_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/NexusXID/internal/attest"
	"github.com/jmerrifield20/NexusXID/internal/auth"
	"github.com/jmerrifield20/NexusXID/internal/principal"
	"github.com/jmerrifield20/NexusXID/internal/trustledger"
	"github.com/jmerrifield20/NexusXID/internal/upstream"
	"github.com/jmerrifield20/NexusXID/internal/xid/handler"
	"github.com/jmerrifield20/NexusXID/internal/xid/ledger"
	"github.com/jmerrifield20/NexusXID/internal/xid/service"
	"github.com/jmerrifield20/NexusXID/pkg/client"
	"go.uber.org/zap"
)

var ctx = context.Background()

// ── Test server ──────────────────────────────────────────────────────────

type server struct {
	url    string
	tokens *auth.TokenIssuer
	signer *btcec.PrivateKey
	owner  principal.Principal
}

func startServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, _ := btcec.NewPrivateKey()
	a, err := attest.New(signer.PubKey().SerializeCompressed(), nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tokens := auth.NewTokenIssuer(rsaKey, "xid-test", time.Hour)
	owner, _ := principal.FromBytes([]byte{0x0a, 0x0b, 0x0c, 0x01})

	svc := service.New(owner, a, upstream.NewMemoryRegistry(), ledger.KeyTuple, zap.NewNop())
	audit := trustledger.New()
	svc.SetAudit(audit)

	r := gin.New()
	v1 := r.Group("/api/v1")
	handler.NewXidHandler(svc, tokens, zap.NewNop()).Register(v1)
	handler.NewAuditHandler(audit, zap.NewNop()).Register(v1)
	handler.NewAssetHandler(svc).Register(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return &server{url: ts.URL, tokens: tokens, signer: signer, owner: owner}
}

func (s *server) clientFor(t *testing.T, p principal.Principal) *client.Client {
	t.Helper()
	tok, err := s.tokens.Issue(p)
	if err != nil {
		t.Fatal(err)
	}
	return client.MustNew(s.url, client.WithBearerToken(tok))
}

func (s *server) envelope(t *testing.T, platform, identity, uuid string) client.Envelope {
	t.Helper()
	env, err := attest.SignEnvelope(s.signer, attest.Payload{
		Action:    "bind",
		CreatedAt: "1700000000",
		Platform:  platform,
		Identity:  identity,
		UUID:      uuid,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client.Envelope{Msg: env.Msg, Sig: env.Sig}
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestNew_invalidBase(t *testing.T) {
	if _, err := client.New("not a url"); err == nil {
		t.Error("expected error for invalid base URL")
	}
	if _, err := client.New("http://x", client.WithTimeout(0)); err == nil {
		t.Error("expected error for zero timeout")
	}
}

func TestBindLifecycle(t *testing.T) {
	s := startServer(t)
	c := s.clientFor(t, s.owner)

	id, err := c.SubmitAttestation(ctx, s.envelope(t, "twitter", "alice", "u-1"))
	if err != nil {
		t.Fatalf("SubmitAttestation: %v", err)
	}
	if id.Identity != "alice" {
		t.Errorf("identity: %+v", id)
	}

	_, err = c.SubmitAttestation(ctx, s.envelope(t, "twitter", "alice", "u-1"))
	if !errors.Is(err, client.ErrReplay) {
		t.Errorf("reused uuid: expected ErrReplay, got %v", err)
	}

	if _, err := c.SubmitAttestation(ctx, s.envelope(t, "github", "alice", "u-2")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ChangeMain(ctx, "github", "alice"); err != nil {
		t.Fatalf("ChangeMain: %v", err)
	}
	cur, err := c.GetMain(ctx)
	if err != nil || cur.Platform != "github" {
		t.Errorf("GetMain: %+v %v", cur, err)
	}

	if err := c.Unbind(ctx, "github", "alice"); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if err := c.Unbind(ctx, "github", "alice"); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("second Unbind: expected ErrNotFound, got %v", err)
	}

	x, err := c.GetXid(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(x.IDs) != 1 || x.MainID.Identity != "" || x.Owner != s.owner.String() {
		t.Errorf("xid after unbinding main: %+v", x)
	}
}

func TestErrors_unauthorized(t *testing.T) {
	s := startServer(t)

	anon := client.MustNew(s.url)
	_, err := anon.SubmitAttestation(ctx, s.envelope(t, "twitter", "a", "u-1"))
	if !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("no token: expected ErrUnauthorized, got %v", err)
	}

	stranger, _ := principal.FromBytes([]byte{0x01})
	_, err = s.clientFor(t, stranger).ChangeMain(ctx, "twitter", "a")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden || !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("non-owner: got %v", err)
	}
}

func TestHostBinding(t *testing.T) {
	s := startServer(t)
	host, _ := principal.FromBytes([]byte{0x55, 0x66, 0x77})

	if err := s.clientFor(t, s.owner).RequestHostBinding(ctx, host.String()); err != nil {
		t.Fatalf("RequestHostBinding: %v", err)
	}
	id, err := s.clientFor(t, host).ConfirmHostBinding(ctx)
	if err != nil {
		t.Fatalf("ConfirmHostBinding: %v", err)
	}
	if id.Identity != host.String() {
		t.Errorf("bound: %+v", id)
	}
	if _, err := s.clientFor(t, host).ConfirmHostBinding(ctx); !errors.Is(err, client.ErrVerification) {
		t.Errorf("confirm without ticket: expected ErrVerification, got %v", err)
	}
}

func TestProfileAndAvatar(t *testing.T) {
	s := startServer(t)
	c := s.clientFor(t, s.owner)

	if _, _, err := c.Avatar(ctx); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("no avatar: expected ErrNotFound, got %v", err)
	}

	name := "Alice"
	x, err := c.SetProfile(ctx, client.Profile{Name: &name})
	if err != nil || x.Name != name {
		t.Fatalf("SetProfile: %+v %v", x, err)
	}

	img := []byte("GIF89a....")
	if err := c.UploadAvatar(ctx, img, "image/gif"); err != nil {
		t.Fatalf("UploadAvatar: %v", err)
	}
	data, ct, err := c.Avatar(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ct != "image/gif" || !bytes.Equal(data, img) {
		t.Errorf("avatar: %q %q", ct, data)
	}
}

func TestContent(t *testing.T) {
	s := startServer(t)
	c := s.clientFor(t, s.owner)

	req := client.StoreRequest{UUID: "p1", Content: client.Content{Twitter: &client.TwitterContent{URL: "https://x.com/1"}}}
	if err := c.UploadContent(ctx, req); err != nil {
		t.Fatalf("UploadContent: %v", err)
	}
	if err := c.UploadContent(ctx, req); !errors.Is(err, client.ErrUUIDRepeat) {
		t.Errorf("duplicate: expected ErrUUIDRepeat, got %v", err)
	}

	ref := client.ContentRef{ContentType: client.ContentTwitter, UUID: "p1"}
	if err := c.MintContent(ctx, ref); err != nil {
		t.Fatalf("MintContent: %v", err)
	}
	n, err := c.ContentSize(ctx, client.ContentTwitter)
	if err != nil || n != 1 {
		t.Errorf("ContentSize: %d %v", n, err)
	}
	items, err := c.ContentPage(ctx, client.ContentTwitter, 0, 10)
	if err != nil || len(items) != 1 || !items[0].IsMinted {
		t.Errorf("ContentPage: %+v %v", items, err)
	}
	if _, err := c.ContentPage(ctx, client.ContentTwitter, 5, 10); !errors.Is(err, client.ErrOutOfRange) {
		t.Errorf("past end: expected ErrOutOfRange, got %v", err)
	}
	found, err := c.ContentLookup(ctx, []client.ContentRef{ref, {ContentType: client.ContentOffChain, UUID: "nope"}})
	if err != nil || len(found) != 1 {
		t.Errorf("ContentLookup: %+v %v", found, err)
	}
	if err := c.DeleteContent(ctx, ref); err != nil {
		t.Fatalf("DeleteContent: %v", err)
	}
	if err := c.DeleteContent(ctx, ref); !errors.Is(err, client.ErrNotFound) {
		t.Errorf("delete twice: expected ErrNotFound, got %v", err)
	}
}

func TestAudit(t *testing.T) {
	s := startServer(t)
	c := s.clientFor(t, s.owner)
	if _, err := c.SubmitAttestation(ctx, s.envelope(t, "twitter", "alice", "u-1")); err != nil {
		t.Fatal(err)
	}

	o, err := c.Audit(ctx)
	if err != nil || o.Entries != 2 {
		t.Errorf("Audit: %+v %v", o, err)
	}
	valid, detail, err := c.VerifyAudit(ctx)
	if err != nil || !valid {
		t.Errorf("VerifyAudit: %v %q %v", valid, detail, err)
	}
	if v, err := c.Version(ctx); err != nil || v != 0 {
		t.Errorf("Version: %d %v", v, err)
	}
}

func TestAPIError_withoutCode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := client.MustNew(ts.URL).GetXid(ctx)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || apiErr.Message != "gateway exploded" {
		t.Fatalf("unexpected error: %#v", err)
	}
	if errors.Is(err, client.ErrNotFound) || errors.Is(err, client.ErrUpstream) {
		t.Error("codeless 502 must not match a sentinel")
	}
}
