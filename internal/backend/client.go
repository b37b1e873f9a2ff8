// Package backend talks to the classification backend over HTTP.
package backend

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
	"github.com/mwiater/escombro/internal/appconfig"
	"github.com/mwiater/escombro/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// ErrorObserver is told about every failed exchange.
type ErrorObserver interface {
	ObserveBackendError(kind string)
}

// Client is a backend API client.
type Client struct {
	baseURL  string
	client   *http.Client
	timeout  time.Duration
	observer ErrorObserver
}

// New constructs a Client configured with the application's request timeout.
func New(cfg *appconfig.Config) *Client {
	timeout := cfg.RequestTimeout()
	return &Client{
		baseURL: cfg.BaseURL(),
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: timeout,
	}
}

// NewWithHTTPClient is used by tests and by callers that share a transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: hc, timeout: hc.Timeout}
}

// SetObserver attaches telemetry.
func (c *Client) SetObserver(o ErrorObserver) { c.observer = o }

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// ResolveURL turns a backend-relative path such as /uploads/a.jpg into an absolute URL.
func (c *Client) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends req and returns the response when the status is 2xx. The body is
// left open for the caller.
func (c *Client) do(req *http.Request, endpoint string, logPayload any) (*http.Response, error) {
	id := uuid.NewString()
	req.Header.Set(requestIDHeader, id)
	logging.LogRequest("ESCOMBRO->BACKEND", endpoint, id, logPayload)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.fail(transportError(endpoint, err))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	logging.LogRequest("BACKEND->ESCOMBRO", endpoint, id, body)

	message := strings.TrimSpace(string(body))
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		message = eb.Error
	}
	if message == "" {
		message = resp.Status
	}
	return nil, c.fail(statusError(endpoint, resp.StatusCode, message))
}

// doJSON sends req and decodes a successful JSON body into out.
func (c *Client) doJSON(req *http.Request, endpoint string, logPayload, out any) error {
	resp, err := c.do(req, endpoint, logPayload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(transportError(endpoint, err))
	}
	logging.LogRequest("BACKEND->ESCOMBRO", endpoint, req.Header.Get(requestIDHeader), body)
	if err := json.Unmarshal(body, out); err != nil {
		return c.fail(&Error{Kind: KindGeneric, Endpoint: endpoint, Status: resp.StatusCode, Message: "malformed response", Err: err})
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	return req, nil
}

func (c *Client) fail(err *Error) error {
	if c.observer != nil {
		c.observer.ObserveBackendError(string(err.Kind))
	}
	return err
}

func jsonBody(v any) (io.Reader, []byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return bytes.NewReader(data), data, nil
}
