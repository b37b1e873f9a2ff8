package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/mwiater/escombro/internal/stats"
)

const (
	fieldFiles       = "files"
	cameraFrameName  = "camera_frame.jpg"
	endpointClassify = "/classify"
	endpointCamera   = "/classify/camera"
)

type classifyResponse struct {
	Results json.RawMessage `json:"results"`
	Error   string          `json:"error"`
}

type cameraResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// Classify uploads every image in a single multipart request and returns the
// validated results. A malformed entry fails the whole call.
func (c *Client) Classify(ctx context.Context, uploads []Upload) ([]stats.ClassificationResult, error) {
	if len(uploads) == 0 {
		return nil, ErrNoValidImages
	}
	body, contentType, err := multipartBody(uploads)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpointClassify, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = u.Name
	}
	var out classifyResponse
	if err := c.doJSON(req, endpointClassify, map[string]any{"files": names}, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, c.fail(&Error{Kind: KindGeneric, Endpoint: endpointClassify, Message: out.Error})
	}
	if len(out.Results) == 0 {
		return nil, fmt.Errorf("%w: response has no results", stats.ErrInvalidBatch)
	}
	return stats.DecodeResults(out.Results)
}

// ClassifyFrame sends one live-preview frame. Its result is never folded.
func (c *Client) ClassifyFrame(ctx context.Context, jpeg []byte) (stats.ClassificationResult, error) {
	body, contentType, err := multipartBody([]Upload{{Name: cameraFrameName, Data: jpeg}})
	if err != nil {
		return stats.ClassificationResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpointCamera, body)
	if err != nil {
		return stats.ClassificationResult{}, err
	}
	req.Header.Set("Content-Type", contentType)

	var out cameraResponse
	if err := c.doJSON(req, endpointCamera, map[string]any{"bytes": len(jpeg)}, &out); err != nil {
		return stats.ClassificationResult{}, err
	}
	if out.Error != "" || len(out.Result) == 0 {
		msg := out.Error
		if msg == "" {
			msg = "empty result"
		}
		return stats.ClassificationResult{}, c.fail(&Error{Kind: KindGeneric, Endpoint: endpointCamera, Message: msg})
	}
	return stats.DecodeResult(out.Result)
}

func multipartBody(uploads []Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, u := range uploads {
		part, err := w.CreateFormFile(fieldFiles, u.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form part %s: %w", u.Name, err)
		}
		if _, err := part.Write(u.Data); err != nil {
			return nil, "", fmt.Errorf("write form part %s: %w", u.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
