package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const (
	endpointClearSession = "/api/clear_session"
	endpointIndex        = "/"
	resultsGridID        = "results-grid"
)

type messageResponse struct {
	Message string `json:"message"`
}

// ClearSession asks the server to drop its per-session result list.
func (c *Client) ClearSession(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, endpointClearSession, nil)
	if err != nil {
		return "", err
	}
	var out messageResponse
	if err := c.doJSON(req, endpointClearSession, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// InitialFragment fetches the index page and returns the inner markup of the
// results grid, the way the page looks before any classification.
func (c *Client) InitialFragment(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, endpointIndex, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req, endpointIndex, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.fail(transportError(endpointIndex, err))
	}
	fragment, err := ExtractInner(string(page), resultsGridID)
	if err != nil {
		return "", c.fail(&Error{Kind: KindGeneric, Endpoint: endpointIndex, Status: resp.StatusCode, Message: err.Error(), Err: err})
	}
	return fragment, nil
}

// ExtractInner returns the rendered children of the element with the given id.
func ExtractInner(page, id string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	target := findByID(doc, id)
	if target == nil {
		return "", fmt.Errorf("element #%s not found", id)
	}
	var b strings.Builder
	for child := target.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&b, child); err != nil {
			return "", fmt.Errorf("render #%s: %w", id, err)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}
