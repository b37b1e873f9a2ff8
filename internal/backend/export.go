package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultExportName is used when the server does not name the attachment.
const DefaultExportName = "Resultados_sesion.csv"

const endpointExport = "/api/export"

// ExportResponse is the CSV document built by the server for the session.
type ExportResponse struct {
	Filename string
	Body     []byte
}

// Export downloads the session CSV rendered in lang.
func (c *Client) Export(ctx context.Context, lang string) (ExportResponse, error) {
	q := url.Values{}
	if lang != "" {
		q.Set("lang", lang)
	}
	path := endpointExport
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return ExportResponse{}, err
	}
	resp, err := c.do(req, endpointExport, map[string]string{"lang": lang})
	if err != nil {
		return ExportResponse{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExportResponse{}, c.fail(transportError(endpointExport, err))
	}
	return ExportResponse{
		Filename: AttachmentName(resp.Header.Get("Content-Disposition")),
		Body:     body,
	}, nil
}

// AttachmentName extracts a safe base filename from a Content-Disposition
// header, falling back to DefaultExportName.
func AttachmentName(disposition string) string {
	var name string
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if _, after, ok := strings.Cut(disposition, "filename="); ok {
			name = strings.Trim(strings.TrimSpace(strings.SplitN(after, ";", 2)[0]), `"`)
		}
	}
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return DefaultExportName
	}
	return name
}

// String is used by debug dumps.
func (e ExportResponse) String() string {
	return fmt.Sprintf("%s (%d bytes)", e.Filename, len(e.Body))
}
