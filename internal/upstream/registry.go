// Package upstream holds the clients for the services the XID depends on:
// the identity registry and the attestation verifier.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/NexusXID/internal/xid/model"
)

// RegistryError is a rejection reported by the registry. Kind is one of
// the model.Kind constants.
type RegistryError struct {
	Kind    string
	Message string
	Status  int
}

func (e *RegistryError) Error() string {
	if e.Message == "" {
		return "registry: " + e.Kind
	}
	return fmt.Sprintf("registry: %s: %s", e.Kind, e.Message)
}

// IsRegistryKind reports whether err is a *RegistryError of the given kind.
func IsRegistryKind(err error, kind string) bool {
	var re *RegistryError
	return errors.As(err, &re) && re.Kind == kind
}

// idRequest is the body of PUT and DELETE /api/v1/ids.
type idRequest struct {
	Xid      string `json:"xid"`
	Platform string `json:"platform"`
	Identity string `json:"identity"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Code  string `json:"code"`
}

// RegistryClient is a lightweight HTTP client for the identity registry.
type RegistryClient struct {
	baseURL string
	http    *http.Client
}

// NewRegistryClient creates a RegistryClient targeting baseURL.
func NewRegistryClient(baseURL string, timeout time.Duration) *RegistryClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RegistryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Put records that owner holds id.
func (c *RegistryClient) Put(ctx context.Context, owner string, id model.SimpleID) error {
	return c.do(ctx, http.MethodPut, owner, id)
}

// Delete releases owner's claim on id.
func (c *RegistryClient) Delete(ctx context.Context, owner string, id model.SimpleID) error {
	return c.do(ctx, http.MethodDelete, owner, id)
}

func (c *RegistryClient) do(ctx context.Context, method, owner string, id model.SimpleID) error {
	body, err := json.Marshal(idRequest{Xid: owner, Platform: id.Platform, Identity: id.Identity})
	if err != nil {
		return fmt.Errorf("encode registry request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1/ids", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry %s to %s: %w", method, c.baseURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck
		return nil
	}

	var er errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(raw, &er)
	kind := er.Kind
	if kind == "" {
		kind = kindForStatus(resp.StatusCode)
	}
	return &RegistryError{Kind: kind, Message: er.Error, Status: resp.StatusCode}
}

// kindForStatus infers a kind when the registry omits one.
func kindForStatus(status int) string {
	switch status {
	case http.StatusConflict:
		return model.KindConflict
	case http.StatusNotFound:
		return model.KindNotFound
	case http.StatusForbidden:
		return model.KindNotOwner
	}
	return model.KindInvalidOperation
}
