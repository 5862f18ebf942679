// Package backend is the HTTP client for the DevMate backend.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Default error texts used when the backend gives no detail.
const (
	FallbackLogin  = "Login failed"
	FallbackSignup = "Signup failed"
	FallbackServer = "Error from server"
	FallbackDelete = "Failed to delete conversation"
	FallbackUpload = "Upload failed"
)

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	Logger  *zap.Logger
}

// New creates a Client rooted at baseURL.
func New(baseURL string, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout)

	http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})
	http.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		logger.Debug("backend request",
			zap.String("method", res.Request.Method),
			zap.String("url", res.Request.URL),
			zap.String("request_id", res.Request.Header.Get("X-Request-ID")),
			zap.Int("status", res.StatusCode()),
			zap.Duration("elapsed", res.Time()))
		return nil
	})

	return &Client{http: http, logger: logger}
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(creds).
		Post("/login")
	if err != nil {
		return nil, c.transport("login", err)
	}

	var out LoginResponse
	if err := c.decode(res, &out, FallbackLogin); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &APIError{StatusCode: res.StatusCode(), Detail: FallbackLogin}
	}
	return &out, nil
}

// Signup creates an account. It does not log in.
func (c *Client) Signup(ctx context.Context, account NewAccount) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(account).
		Post("/signup")
	if err != nil {
		return c.transport("signup", err)
	}
	return c.decode(res, nil, FallbackSignup)
}

// ListConversations returns every conversation owned by the token's user.
func (c *Client) ListConversations(ctx context.Context, token string) ([]Conversation, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/conversations")
	if err != nil {
		return nil, c.transport("list conversations", err)
	}

	var out conversationsResponse
	if err := c.decode(res, &out, FallbackServer); err != nil {
		return nil, err
	}
	if out.Conversations == nil {
		return []Conversation{}, nil
	}
	return out.Conversations, nil
}

// DeleteConversation removes a conversation on the server.
func (c *Client) DeleteConversation(ctx context.Context, token, id string) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("id", id).
		Delete("/conversations/{id}")
	if err != nil {
		return c.transport("delete conversation", err)
	}
	return c.decode(res, nil, FallbackDelete)
}

// Run sends the full message history and returns the server's authoritative
// list plus the conversation id.
func (c *Client) Run(ctx context.Context, token string, req RunRequest) (*RunResponse, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/run")
	if err != nil {
		return nil, c.transport("run", err)
	}

	var out RunResponse
	if err := c.decode(res, &out, FallbackServer); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return &out, nil
}

// Upload sends a file as multipart field "file" and returns the server's
// confirmation text.
func (c *Client) Upload(ctx context.Context, token, filename string, r io.Reader) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetFileReader("file", filepath.Base(filename), r).
		Post("/upload")
	if err != nil {
		return "", c.transport("upload", err)
	}

	var out uploadResponse
	if err := c.decode(res, &out, FallbackUpload); err != nil {
		return "", err
	}
	return out.Message, nil
}

// decode maps a response onto out, or onto an *APIError for non-2xx. A body
// that is not JSON is a transport failure either way.
func (c *Client) decode(res *resty.Response, out any, fallback string) error {
	body := res.Body()

	if !res.IsSuccess() {
		if len(body) > 0 && !json.Valid(body) {
			c.logger.Error("backend returned non-JSON error",
				zap.Int("status", res.StatusCode()),
				zap.String("body", res.String()))
			return fmt.Errorf("%s %s: %w: status %d", res.Request.Method, res.Request.URL, ErrTransport, res.StatusCode())
		}
		apiErr := newAPIError(res.StatusCode(), body, fallback)
		c.logger.Info("backend rejected request",
			zap.Int("status", apiErr.StatusCode),
			zap.String("detail", apiErr.Detail))
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("error parsing backend response", zap.Error(err))
		return fmt.Errorf("%s %s: %w: %v", res.Request.Method, res.Request.URL, ErrTransport, err)
	}
	return nil
}

func (c *Client) transport(op string, err error) error {
	c.logger.Error("backend unreachable", zap.String("op", op), zap.Error(err))
	return transportError(op, err)
}
