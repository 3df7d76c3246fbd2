// Package syncclient is a typed Go client for the sync server's HTTP API:
// register, login, whoami, document listing, push and pull. Zero
// third-party dependencies — net/http and encoding/json only, matching how
// the rest of this codebase treats a client as a thin wire adapter rather
// than a place for business logic.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytes-zone/beeps/pkg/document"
)

// DefaultTimeout is applied to every request unless overridden with
// WithTimeout.
const DefaultTimeout = 5 * time.Second

// Client talks to one sync server on behalf of one device. It carries at
// most one bearer token at a time, set by Login or WithToken.
type Client struct {
	serverURL  string
	auth       *string
	httpClient *http.Client
}

// New builds a Client with no auth set unless WithToken is given; Login
// must succeed before any authenticated method will do anything but fail
// locally.
func New(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout for every request this client makes.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithToken pre-seeds the bearer token, for restoring a session without
// logging in again.
func WithToken(token string) Option {
	return func(c *Client) { c.auth = &token }
}

// IsAuthenticated reports whether a bearer token is currently set.
func (c *Client) IsAuthenticated() bool { return c.auth != nil }

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult is the decoded response from Register.
type RegisterResult struct {
	Email string `json:"email"`
}

// Register creates an account. It never sets auth; the caller is expected
// to call Login afterward.
func (c *Client) Register(ctx context.Context, email, password string) (RegisterResult, error) {
	var out RegisterResult
	err := c.do(ctx, http.MethodPost, "/api/v1/register", registerRequest{Email: email, Password: password}, &out, false)
	return out, err
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	JWT string `json:"jwt"`
}

// Login authenticates and, on success, stores the returned token so
// subsequent calls on this Client are authenticated.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/login", loginRequest{Email: email, Password: password}, &out, false); err != nil {
		return err
	}
	c.auth = &out.JWT
	return nil
}

// WhoamiResult is the decoded response from Whoami.
type WhoamiResult struct {
	Email string `json:"email"`
}

// Whoami returns the email bound to the current bearer token.
func (c *Client) Whoami(ctx context.Context) (WhoamiResult, error) {
	var out WhoamiResult
	err := c.do(ctx, http.MethodGet, "/api/v1/whoami", nil, &out, true)
	return out, err
}

// DocumentSummary is one entry from Documents.
type DocumentSummary struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Documents lists every document owned by the authenticated account.
func (c *Client) Documents(ctx context.Context) ([]DocumentSummary, error) {
	var out []DocumentSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/documents", nil, &out, true)
	return out, err
}

// Push posts the full state of doc to documentID. Pushes are idempotent:
// calling Push twice with the same Document has no additional effect.
func (c *Client) Push(ctx context.Context, documentID int64, doc document.Document) error {
	path := fmt.Sprintf("/api/v1/push/%d", documentID)
	return c.do(ctx, http.MethodPost, path, fromDocument(doc), nil, true)
}

// Pull fetches and rebuilds the full state of documentID.
func (c *Client) Pull(ctx context.Context, documentID int64) (document.Document, error) {
	path := fmt.Sprintf("/api/v1/pull/%d", documentID)
	var wire wireDocument
	if err := c.do(ctx, http.MethodGet, path, nil, &wire, true); err != nil {
		return document.Document{}, err
	}
	doc, err := wire.toDocument()
	if err != nil {
		return document.Document{}, transportError(err)
	}
	return doc, nil
}

type serverErrorBody struct {
	Error string `json:"error"`
}

// do performs one request/response round trip. requireAuth calls fail
// immediately, without touching the network, if no token is set.
func (c *Client) do(ctx context.Context, method, path string, body, out any, requireAuth bool) error {
	if requireAuth && c.auth == nil {
		return unauthorizedError()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return urlParseError(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return urlParseError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth != nil {
		req.Header.Set("Authorization", "Bearer "+*c.auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return transportError(err)
		}
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var errBody serverErrorBody
		message := "request failed"
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Error != "" {
			message = errBody.Error
		}
		return clientError(resp.StatusCode, message)
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return serverError(resp.StatusCode)
	default:
		return unexpectedError(resp.StatusCode)
	}
}
