package content_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/jmerrifield20/NexusXID/internal/xid/content"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
)

func tweet(uuid string) model.StoreArg {
	return model.StoreArg{
		UUID:      uuid,
		DPlatform: "twitter",
		Content:   model.Content{Twitter: &model.TwitterContent{URL: "https://x.com/a/" + uuid}},
	}
}

func file(uuid string) model.StoreArg {
	return model.StoreArg{
		UUID:    uuid,
		Content: model.Content{OffChain: &model.OffChainContent{FileType: "pdf"}},
	}
}

func TestUpload_repeat(t *testing.T) {
	s := content.New()
	if err := s.Upload("owner", tweet("u1"), "10"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := s.Upload("owner", tweet("u1"), "11"); !errors.Is(err, model.ErrUUIDRepeat) {
		t.Fatalf("expected ErrUUIDRepeat, got %v", err)
	}
	// The same uuid in the other store is independent.
	if err := s.Upload("owner", file("u1"), "12"); err != nil {
		t.Fatalf("Upload offchain: %v", err)
	}
}

func TestUpload_ambiguousContent(t *testing.T) {
	s := content.New()
	arg := model.StoreArg{UUID: "u", Content: model.Content{}}
	if err := s.Upload("owner", arg, "1"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("empty content: expected ErrInvalidArgument, got %v", err)
	}
	arg.Content = model.Content{Twitter: &model.TwitterContent{}, OffChain: &model.OffChainContent{}}
	if err := s.Upload("owner", arg, "1"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("both kinds: expected ErrInvalidArgument, got %v", err)
	}
}

func TestDeleteAndMint(t *testing.T) {
	s := content.New()
	s.Upload("owner", file("f1"), "10")
	ref := model.ContentUUID{ContentType: model.ContentOffChain, UUID: "f1"}

	if err := s.Mint(ref, "20"); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	got := s.Lookup([]model.ContentUUID{ref})
	if len(got) != 1 || !got[0].IsMinted || got[0].MintTime != "20" || got[0].UploadTime != "10" {
		t.Fatalf("unexpected item after mint: %+v", got)
	}

	if err := s.Delete(ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ref); !errors.Is(err, model.ErrUUIDNotExist) {
		t.Fatalf("second Delete: expected ErrUUIDNotExist, got %v", err)
	}
	if err := s.Mint(ref, "30"); !errors.Is(err, model.ErrUUIDNotExist) {
		t.Fatalf("Mint missing: expected ErrUUIDNotExist, got %v", err)
	}
}

func TestPage(t *testing.T) {
	s := content.New()
	for i := 0; i < 5; i++ {
		s.Upload("owner", tweet(fmt.Sprintf("t%d", i)), "1")
	}
	s.Upload("owner", file("f0"), "1")

	page, err := s.Page(model.ContentTwitter, 1, 2)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page) != 2 || page[0].UUID != "t1" || page[1].UUID != "t2" {
		t.Errorf("unexpected page: %+v", page)
	}

	page, _ = s.Page(model.ContentTwitter, 3, 10)
	if len(page) != 2 {
		t.Errorf("clamped page: got %d items, want 2", len(page))
	}

	// The window is clamped to the store's own length, not the other store's.
	page, err = s.Page(model.ContentOffChain, 0, 10)
	if err != nil || len(page) != 1 {
		t.Errorf("offchain page: %v, %d items", err, len(page))
	}

	if _, err := s.Page(model.ContentTwitter, 5, 1); !errors.Is(err, model.ErrFieldOutOfRange) {
		t.Errorf("start == len: expected ErrFieldOutOfRange, got %v", err)
	}
	if _, err := s.Page(model.ContentOffChain, 1, 1); !errors.Is(err, model.ErrFieldOutOfRange) {
		t.Errorf("offchain start == len: expected ErrFieldOutOfRange, got %v", err)
	}
}

func TestPage_hugeLimit(t *testing.T) {
	s := content.New()
	s.Upload("owner", tweet("t0"), "1")
	s.Upload("owner", tweet("t1"), "1")

	page, err := s.Page(model.ContentTwitter, 1, math.MaxInt)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page) != 1 || page[0].UUID != "t1" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestLookup_skipsMisses(t *testing.T) {
	s := content.New()
	s.Upload("owner", tweet("t1"), "1")
	s.Upload("owner", file("f1"), "1")

	got := s.Lookup([]model.ContentUUID{
		{ContentType: model.ContentOffChain, UUID: "f1"},
		{ContentType: model.ContentTwitter, UUID: "missing"},
		{ContentType: model.ContentOffChain, UUID: "t1"},
		{ContentType: model.ContentTwitter, UUID: "t1"},
	})
	if len(got) != 2 || got[0].UUID != "f1" || got[1].UUID != "t1" {
		t.Errorf("unexpected lookup result: %+v", got)
	}
}

func TestSnapshot_roundTrip(t *testing.T) {
	s := content.New()
	s.Upload("owner", tweet("t1"), "1")
	s.Upload("owner", file("f1"), "2")
	s.Mint(model.ContentUUID{ContentType: model.ContentTwitter, UUID: "t1"}, "3")

	back, err := content.FromSnapshot(s.Snapshot())
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	n, _ := back.Size(model.ContentTwitter)
	m, _ := back.Size(model.ContentOffChain)
	if n != 1 || m != 1 {
		t.Fatalf("sizes: %d %d", n, m)
	}
	got := back.Lookup([]model.ContentUUID{{ContentType: model.ContentTwitter, UUID: "t1"}})
	if len(got) != 1 || !got[0].IsMinted {
		t.Errorf("mint status lost: %+v", got)
	}
}

func TestFromSnapshot_wrongKind(t *testing.T) {
	snap := content.Snapshot{
		Twitter: []model.Storage{{UUID: "x", Content: model.Content{OffChain: &model.OffChainContent{}}}},
	}
	if _, err := content.FromSnapshot(snap); err == nil {
		t.Error("expected error for offchain item in twitter store")
	}
}
