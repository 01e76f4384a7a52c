// Package auth authenticates callers by host principal.
//
// The hosting platform issues short-lived RS256 JWTs whose subject is the
// caller's principal text. Handlers read the verified principal from the
// Gin context; the service layer decides what that principal may do.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmerrifield20/NexusXID/internal/principal"
)

// PrincipalClaims are the JWT claims of a caller principal token.
type PrincipalClaims struct {
	jwt.RegisteredClaims
	Principal string `json:"principal"`
}

// TokenIssuer issues and verifies principal tokens. A TokenIssuer created
// with NewTokenVerifier holds only the public key and cannot issue.
type TokenIssuer struct {
	key    *rsa.PrivateKey
	pub    *rsa.PublicKey
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	issuer — the "iss" claim value.
//	ttl    — token lifetime (default: 1 hour).
func NewTokenIssuer(key *rsa.PrivateKey, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{key: key, pub: &key.PublicKey, issuer: issuer, ttl: ttl}
}

// NewTokenVerifier creates a verify-only TokenIssuer.
func NewTokenVerifier(pub *rsa.PublicKey, issuer string) *TokenIssuer {
	return &TokenIssuer{pub: pub, issuer: issuer}
}

// Issue creates a signed token for p.
func (t *TokenIssuer) Issue(p principal.Principal) (string, error) {
	if t.key == nil {
		return "", errors.New("token issuer has no signing key")
	}
	now := time.Now().UTC()
	text := p.String()
	claims := PrincipalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   text,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Principal: text,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign principal token: %w", err)
	}
	return signed, nil
}

// Verify validates tokenStr and returns the caller principal it names.
func (t *TokenIssuer) Verify(tokenStr string) (principal.Principal, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&PrincipalClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.pub, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return principal.Principal{}, fmt.Errorf("verify principal token: %w", err)
	}
	claims, ok := token.Claims.(*PrincipalClaims)
	if !ok || !token.Valid {
		return principal.Principal{}, errors.New("invalid principal token claims")
	}
	if claims.Principal != claims.Subject {
		return principal.Principal{}, errors.New("principal claim does not match subject")
	}
	p, err := principal.Parse(claims.Principal)
	if err != nil {
		return principal.Principal{}, fmt.Errorf("principal claim: %w", err)
	}
	return p, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// LoadOrCreateKey reads a PKCS#1 RSA private key PEM from path, generating
// and writing a new 2048-bit key when the file does not exist.
func LoadOrCreateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		block, _ := pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no PEM block in %s", path)
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse signing key: %w", err)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return key, nil
}
