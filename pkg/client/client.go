package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxResponse bounds every response body except avatar downloads.
const maxResponse = 1 << 20

// Client talks to one XID service.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient = &http.Client{Timeout: d}
		return nil
	}
}

// WithBearerToken attaches a principal token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the service at base, e.g. "http://localhost:8090".
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ── Identity ─────────────────────────────────────────────────────────────

// GetXid fetches the public identity summary.
func (c *Client) GetXid(ctx context.Context) (*Xid, error) {
	var x Xid
	if err := c.call(ctx, http.MethodGet, "/api/v1/xid", nil, &x); err != nil {
		return nil, err
	}
	return &x, nil
}

// GetMain fetches the main identity. The zero Identity means none is set.
func (c *Client) GetMain(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.call(ctx, http.MethodGet, "/api/v1/xid/main", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Version returns the service's data-format version.
func (c *Client) Version(ctx context.Context) (uint8, error) {
	var resp struct {
		Version uint8 `json:"version"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/xid/version", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// ChangeMain makes (platform, identity) the main identity.
func (c *Client) ChangeMain(ctx context.Context, platform, identity string) (*Identity, error) {
	var id Identity
	req := Identity{Platform: platform, Identity: identity}
	if err := c.call(ctx, http.MethodPost, "/api/v1/xid/main", req, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// Unbind removes (platform, identity).
func (c *Client) Unbind(ctx context.Context, platform, identity string) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/xid/ids", Identity{Platform: platform, Identity: identity}, nil)
}

// SubmitAttestation binds the identity carried by env.
func (c *Client) SubmitAttestation(ctx context.Context, env Envelope) (*Identity, error) {
	var id Identity
	if err := c.call(ctx, http.MethodPost, "/api/v1/xid/verify", env, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// RequestHostBinding names the principal allowed to confirm a host binding.
func (c *Client) RequestHostBinding(ctx context.Context, principal string) error {
	body := map[string]string{"principal": principal}
	return c.call(ctx, http.MethodPost, "/api/v1/xid/host-binding", body, nil)
}

// ConfirmHostBinding binds the calling principal. The client's token must
// belong to the principal named in the pending request.
func (c *Client) ConfirmHostBinding(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.call(ctx, http.MethodPost, "/api/v1/xid/host-binding/confirm", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// ── Profile ──────────────────────────────────────────────────────────────

// SetProfile applies p and returns the updated summary.
func (c *Client) SetProfile(ctx context.Context, p Profile) (*Xid, error) {
	var x Xid
	if err := c.call(ctx, http.MethodPatch, "/api/v1/xid", p, &x); err != nil {
		return nil, err
	}
	return &x, nil
}

// UploadAvatar replaces the avatar image.
func (c *Client) UploadAvatar(ctx context.Context, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+"/api/v1/xid/avatar", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	_, err = c.do(req, maxResponse)
	return err
}

// Avatar downloads the avatar image and its content type.
func (c *Client) Avatar(ctx context.Context) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/avatar/avatar", nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", &APIError{Status: resp.StatusCode, Code: "not_found", Message: "no avatar"}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, "", fmt.Errorf("read avatar: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, "", &APIError{Status: resp.StatusCode, Message: string(data)}
	}
	ct, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	return data, ct, nil
}

// ── Content ──────────────────────────────────────────────────────────────

// ContentSize returns the number of items of contentType.
func (c *Client) ContentSize(ctx context.Context, contentType string) (int, error) {
	var resp struct {
		Size int `json:"size"`
	}
	path := "/api/v1/xid/store/" + url.PathEscape(contentType) + "/size"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// ContentPage returns up to limit items of contentType starting at start.
func (c *Client) ContentPage(ctx context.Context, contentType string, start, limit int) ([]StoredItem, error) {
	q := url.Values{}
	q.Set("start", strconv.Itoa(start))
	q.Set("offset", strconv.Itoa(limit))
	path := "/api/v1/xid/store/" + url.PathEscape(contentType) + "?" + q.Encode()

	var resp struct {
		Items []StoredItem `json:"items"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ContentLookup fetches the listed items; unknown refs are skipped.
func (c *Client) ContentLookup(ctx context.Context, refs []ContentRef) ([]StoredItem, error) {
	var resp struct {
		Items []StoredItem `json:"items"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/xid/store/lookup", refs, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// UploadContent stores one item.
func (c *Client) UploadContent(ctx context.Context, req StoreRequest) error {
	return c.call(ctx, http.MethodPost, "/api/v1/xid/store", req, nil)
}

// DeleteContent removes one item.
func (c *Client) DeleteContent(ctx context.Context, ref ContentRef) error {
	return c.call(ctx, http.MethodDelete, contentPath(ref), nil, nil)
}

// MintContent marks one item as minted.
func (c *Client) MintContent(ctx context.Context, ref ContentRef) error {
	return c.call(ctx, http.MethodPost, contentPath(ref)+"/mint", nil, nil)
}

func contentPath(ref ContentRef) string {
	return "/api/v1/xid/store/" + url.PathEscape(ref.ContentType) + "/" + url.PathEscape(ref.UUID)
}

// ── Audit ────────────────────────────────────────────────────────────────

// Audit returns the audit trail length and root hash.
func (c *Client) Audit(ctx context.Context) (*AuditOverview, error) {
	var o AuditOverview
	if err := c.call(ctx, http.MethodGet, "/api/v1/audit", nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// VerifyAudit asks the service to re-check its audit chain. A broken chain
// is reported as (false, nil) with the reason in detail.
func (c *Client) VerifyAudit(ctx context.Context) (valid bool, detail string, err error) {
	var resp struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/audit/verify", nil, &resp); err != nil {
		return false, "", err
	}
	return resp.Valid, resp.Error, nil
}

// ── Transport ────────────────────────────────────────────────────────────

// call sends reqBody as JSON (when non-nil) and decodes the response into
// respBody (when non-nil).
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, maxResponse)
	if err != nil {
		return err
	}
	if respBody != nil && len(body) > 0 {
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// do executes req, attaching the Bearer token if present. Non-2xx
// responses become *APIError.
func (c *Client) do(req *http.Request, limit int64) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeAPIError(status int, body []byte) *APIError {
	var e struct {
		Error string `json:"error"`
		Code  string `json:"code"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{Status: status, Code: e.Code, Kind: e.Kind, Message: e.Error}
}
