// Package sigverify validates detached secp256k1 signatures over messages
// hashed with the wallet "personal sign" convention.
//
// Verify is pure and stateless; it is safe for unlimited concurrent use.
package sigverify

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"
)

// personalPrefix is prepended (with the decimal message length) before hashing.
const personalPrefix = "\x19Ethereum Signed Message:\n"

// Sizes of the accepted signature and public-key field encodings.
const (
	SignatureSize           = 64
	FullPublicKeySize       = 65
	RawPublicKeySize        = 64
	CompressedPublicKeySize = 33
	RecoveryIDSize          = 1
)

// compactMagicOffset is the header offset used by the 65-byte compact
// recoverable signature format understood by ecdsa.RecoverCompact.
const compactMagicOffset = 27

// PersonalHash returns the 32-byte Keccak-256 digest of
// "\x19Ethereum Signed Message:\n" + len(message) + message.
func PersonalHash(message []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(personalPrefix))
	h.Write([]byte(strconv.Itoa(len(message))))
	h.Write(message)
	return h.Sum(nil)
}

// Verify reports whether signature (64-byte r‖s) is a valid signature over
// PersonalHash(message) for the key described by publicKeyField.
//
// The length of publicKeyField selects its interpretation:
//
//	65 bytes — uncompressed key (0x04 ‖ x ‖ y)
//	64 bytes — raw key (x ‖ y)
//	33 bytes — compressed key
//	 1 byte  — recovery id 0..3; the key is recovered from the signature
//
// Any other length, and any decode failure, yields false.
func Verify(message, signature, publicKeyField []byte) bool {
	if len(signature) != SignatureSize {
		return false
	}
	sig, ok := parseSignature(signature)
	if !ok {
		return false
	}

	digest := PersonalHash(message)

	var pub *btcec.PublicKey
	switch len(publicKeyField) {
	case FullPublicKeySize:
		if publicKeyField[0] != 0x04 {
			return false
		}
		k, err := btcec.ParsePubKey(publicKeyField)
		if err != nil {
			return false
		}
		pub = k
	case RawPublicKeySize:
		full := make([]byte, 0, FullPublicKeySize)
		full = append(full, 0x04)
		full = append(full, publicKeyField...)
		k, err := btcec.ParsePubKey(full)
		if err != nil {
			return false
		}
		pub = k
	case CompressedPublicKeySize:
		k, err := btcec.ParsePubKey(publicKeyField)
		if err != nil {
			return false
		}
		pub = k
	case RecoveryIDSize:
		k, ok := recoverKey(digest, signature, publicKeyField[0])
		if !ok {
			return false
		}
		pub = k
	default:
		return false
	}

	return sig.Verify(digest, pub)
}

// parseSignature decodes r‖s, rejecting zero or overflowing scalars.
func parseSignature(b []byte) (*ecdsa.Signature, bool) {
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(b[:32]); overflow || r.IsZero() {
		return nil, false
	}
	if overflow := s.SetByteSlice(b[32:]); overflow || s.IsZero() {
		return nil, false
	}
	return ecdsa.NewSignature(&r, &s), true
}

// recoverKey recovers the public key that produced signature over digest.
func recoverKey(digest, signature []byte, recoveryID byte) (*btcec.PublicKey, bool) {
	if recoveryID > 3 {
		return nil, false
	}
	compact := make([]byte, 0, 1+SignatureSize)
	compact = append(compact, compactMagicOffset+recoveryID)
	compact = append(compact, signature...)
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, false
	}
	return pub, true
}

// SignPersonal signs PersonalHash(message) with key and returns the 64-byte
// r‖s signature together with its recovery id.
func SignPersonal(key *btcec.PrivateKey, message []byte) ([]byte, byte, error) {
	compact := ecdsa.SignCompact(key, PersonalHash(message), false)
	if len(compact) != 1+SignatureSize {
		return nil, 0, fmt.Errorf("unexpected compact signature length %d", len(compact))
	}
	recoveryID := compact[0] - compactMagicOffset
	return compact[1:], recoveryID, nil
}

// ParseKeyField decodes a hex public-key field, with or without a 0x prefix.
// It does not validate the key itself; Verify does.
func ParseKeyField(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key hex: %w", err)
	}
	switch len(b) {
	case FullPublicKeySize, RawPublicKeySize, CompressedPublicKeySize, RecoveryIDSize:
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported key field length %d", len(b))
	}
}
