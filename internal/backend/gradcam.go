package backend

import (
	"context"
	"io"
	"net/http"

	"github.com/mwiater/escombro/internal/materials"
)

const endpointGradCAM = "/api/gradcam"

// Heatmap is one Grad-CAM overlay produced for an uploaded image.
type Heatmap struct {
	URL   string
	Class materials.Class
	Known bool
}

type gradcamResponse struct {
	HeatmapURLs []string `json:"heatmap_urls"`
}

// GradCAM requests heatmaps for a file previously uploaded through Classify.
// URLs whose class cannot be recovered are kept with Known=false.
func (c *Client) GradCAM(ctx context.Context, filename string) ([]Heatmap, error) {
	payload := map[string]string{"filename": filename}
	body, _, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpointGradCAM, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out gradcamResponse
	if err := c.doJSON(req, endpointGradCAM, payload, &out); err != nil {
		return nil, err
	}
	maps := make([]Heatmap, 0, len(out.HeatmapURLs))
	for _, u := range out.HeatmapURLs {
		h := Heatmap{URL: c.ResolveURL(u)}
		if cls, err := materials.ParseGradCAMURL(u); err == nil {
			h.Class, h.Known = cls, true
		}
		maps = append(maps, h)
	}
	return maps, nil
}

// Download fetches a backend asset such as a heatmap image.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveURL(path), nil)
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
