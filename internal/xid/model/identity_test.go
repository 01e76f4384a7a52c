package model_test

import (
	"errors"
	"testing"

	"github.com/jmerrifield20/NexusXID/internal/xid/model"
)

func TestSimpleID_AsIdentity(t *testing.T) {
	s := model.SimpleID{Platform: "twitter", Identity: "alice"}
	id := s.AsIdentity()
	if id.Platform != "twitter" || id.Identity != "alice" || id.BindTime != "" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if id.Simple() != s {
		t.Errorf("Simple round trip: got %+v", id.Simple())
	}
}

func TestErrPrincipal_isVerificationFailure(t *testing.T) {
	if !errors.Is(model.ErrPrincipal, model.ErrVerification) {
		t.Error("ErrPrincipal must match ErrVerification")
	}
	if errors.Is(model.ErrVerification, model.ErrPrincipal) {
		t.Error("ErrVerification must not match ErrPrincipal")
	}
}
