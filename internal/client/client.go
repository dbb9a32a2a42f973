package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrMalformedReply is returned when a JSON reply cannot be decoded or has
// no reply field.
var ErrMalformedReply = errors.New("malformed reply")

// StatusError reports a non-success HTTP status from the backend.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Endpoint, e.Code, e.Body)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"session_id"`
	Name         string `json:"name,omitempty"`
	BusinessType string `json:"business_type,omitempty"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

type jsonReply struct {
	Reply *string `json:"reply"`
}

// Reply is either a streaming body or a complete text.
type Reply struct {
	// Body is set when the backend streams; the caller must Close the Reply.
	Body io.ReadCloser
	Text string
}

// Streaming reports whether the reply must be consumed from Body.
func (r *Reply) Streaming() bool {
	return r != nil && r.Body != nil
}

// Close releases the streaming body, if any.
func (r *Reply) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Client talks to the AI receptionist backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. The default has no timeout so a
// slow stream is never cut off.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat posts a user message. A JSON response is decoded into Reply.Text;
// anything else is handed back as a stream.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*Reply, error) {
	resp, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		c.logger.Debug("streaming reply", zap.String("session", req.SessionID))
		return &Reply{Body: resp.Body}, nil
	}

	defer resp.Body.Close()
	var payload jsonReply
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if payload.Reply == nil {
		return nil, fmt.Errorf("%w: missing reply field", ErrMalformedReply)
	}
	return &Reply{Text: *payload.Reply}, nil
}

// Reset asks the backend to forget the session's memory.
func (c *Client) Reset(ctx context.Context, sessionID string) error {
	resp, err := c.post(ctx, "/api/reset", resetRequest{SessionID: sessionID})
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Endpoint: path,
			Code:     resp.StatusCode,
			Body:     strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
