package backend

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Locale fetches the translation catalog served by the backend.
func (c *Client) Locale(ctx context.Context, lang string) ([]byte, error) {
	path := "/static/locales/" + url.PathEscape(lang) + ".json"
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(transportError(path, err))
	}
	return data, nil
}

// Health mirrors GET /api/health.
type Health struct {
	Status           string   `json:"status"`
	ModelLoaded      bool     `json:"model_loaded"`
	Device           string   `json:"device"`
	UploadFolder     string   `json:"upload_folder"`
	SupportedFormats []string `json:"supported_formats"`
	Timestamp        string   `json:"timestamp"`
	Error            string   `json:"error,omitempty"`
}

// Health reports whether the backend and its model are up.
func (c *Client) Health(ctx context.Context) (Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return Health{}, err
	}
	var out Health
	if err := c.doJSON(req, "/api/health", nil, &out); err != nil {
		return Health{}, err
	}
	return out, nil
}
