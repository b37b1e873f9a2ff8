package backend

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/escombro/internal/logging"
)

// Upload is one image ready to be sent to the classifier.
type Upload struct {
	Name string
	Data []byte
}

// Rejected describes an input dropped before any request was made.
type Rejected struct {
	Path        string
	ContentType string
	Err         error
}

// ImageContentType sniffs data and reports whether it looks like an image.
func ImageContentType(data []byte) (string, bool) {
	ct := http.DetectContentType(data)
	return ct, strings.HasPrefix(ct, "image/")
}

// LoadUploads reads paths from disk and keeps only the ones that sniff as
// images. ErrNoValidImages is returned when nothing survives.
func LoadUploads(paths []string) ([]Upload, []Rejected, error) {
	var uploads []Upload
	var rejected []Rejected
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			rejected = append(rejected, Rejected{Path: p, Err: err})
			continue
		}
		ct, ok := ImageContentType(data)
		if !ok {
			logging.LogWarn("skipping %s: content type %s is not an image", p, ct)
			rejected = append(rejected, Rejected{Path: p, ContentType: ct, Err: fmt.Errorf("not an image (%s)", ct)})
			continue
		}
		uploads = append(uploads, Upload{Name: filepath.Base(p), Data: data})
	}
	if len(uploads) == 0 {
		return nil, rejected, ErrNoValidImages
	}
	return uploads, rejected, nil
}
