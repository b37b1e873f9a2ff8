// Package camera drives live detection from a frame source.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/mwiater/escombro/internal/backend"
)

// ErrNoFrame means the source has nothing to show yet. Ticks that hit it are
// skipped silently.
var ErrNoFrame = errors.New("no frame available")

// FrameSource yields the current camera picture.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
	Name() string
}

// SnapshotSource polls an IP camera's still-image URL.
type SnapshotSource struct {
	URL    string
	Client *http.Client
}

// NewSnapshotSource returns a source polling url with client.
func NewSnapshotSource(url string, client *http.Client) *SnapshotSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &SnapshotSource{URL: url, Client: client}
}

func (s *SnapshotSource) Name() string { return s.URL }

func (s *SnapshotSource) Frame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch snapshot: %s", resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}

// DirectorySource cycles through the images of a directory in name order.
// Files that do not sniff as images are ignored.
type DirectorySource struct {
	dir  string
	mu   sync.Mutex
	next int
}

// NewDirectorySource returns a source reading from dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

func (d *DirectorySource) Name() string { return d.dir }

func (d *DirectorySource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := d.images()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFrame
	}
	d.mu.Lock()
	path := files[d.next%len(files)]
	d.next++
	d.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (d *DirectorySource) images() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(d.dir, e.Name())
		head, err := readHead(path)
		if err != nil {
			continue
		}
		if _, ok := backend.ImageContentType(head); ok {
			out = append(out, path)
		}
	}
	slices.Sort(out)
	return out, nil
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return buf[:n], nil
}

// OpenSource picks a source from a config value: an http(s) URL becomes a
// SnapshotSource, anything else is treated as a directory.
func OpenSource(spec string, client *http.Client) (FrameSource, error) {
	switch {
	case spec == "":
		return nil, errors.New("no camera source configured")
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return NewSnapshotSource(spec, client), nil
	default:
		info, err := os.Stat(spec)
		if err != nil {
			return nil, fmt.Errorf("camera source: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("camera source %s is not a directory", spec)
		}
		return NewDirectorySource(spec), nil
	}
}
