package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/NexusXID/internal/attest"
)

// VerifierClient calls a remote attestation verifier. Rejections carry the
// matching attest sentinel, so errors.Is(err, attest.ErrReplay) works the
// same as with an in-process attest.Attestor.
type VerifierClient struct {
	baseURL string
	http    *http.Client
}

// NewVerifierClient creates a VerifierClient targeting baseURL.
func NewVerifierClient(baseURL string, timeout time.Duration) *VerifierClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &VerifierClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Verify posts env to /api/v1/verify and returns the decoded payload.
func (c *VerifierClient) Verify(ctx context.Context, env attest.Envelope) (*attest.Payload, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode verify request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/verify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read verify response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		if sentinel, ok := attest.ErrorForCode(er.Code); ok {
			return nil, fmt.Errorf("%w: %s", sentinel, er.Error)
		}
		return nil, fmt.Errorf("verifier returned status %d: %s", resp.StatusCode, er.Error)
	}

	var p attest.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &p, nil
}
