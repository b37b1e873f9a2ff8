package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mwiater/escombro/internal/backend"
	"github.com/mwiater/escombro/internal/logging"
	"github.com/mwiater/escombro/internal/stats"
)

// Classifier is the part of the backend client the camera needs.
type Classifier interface {
	ClassifyFrame(ctx context.Context, jpeg []byte) (stats.ClassificationResult, error)
	Classify(ctx context.Context, uploads []backend.Upload) ([]stats.ClassificationResult, error)
}

// Folder receives captured results.
type Folder interface {
	Fold(results ...stats.ClassificationResult) error
}

// TickObserver is told about every detection attempt.
type TickObserver interface {
	ObserveCameraTick(err error)
}

// Update is one live-preview outcome.
type Update struct {
	Result stats.ClassificationResult
	Err    error
	At     time.Time
}

// Detector samples the source on a fixed interval and classifies each frame
// for preview. Preview results never reach the statistics.
type Detector struct {
	source     FrameSource
	classifier Classifier
	folder     Folder
	interval   time.Duration
	observer   TickObserver
	now        func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewDetector wires a detector. folder may be nil when Capture is unused.
func NewDetector(source FrameSource, classifier Classifier, folder Folder, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = time.Second
	}
	return &Detector{
		source:     source,
		classifier: classifier,
		folder:     folder,
		interval:   interval,
		now:        time.Now,
	}
}

// SetObserver attaches telemetry.
func (d *Detector) SetObserver(o TickObserver) { d.observer = o }

// Start begins detection and returns the update stream. The channel is
// closed once the loop has exited. Calling Start twice returns an error.
func (d *Detector) Start(ctx context.Context) (<-chan Update, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil, errors.New("detector already stopped")
	}
	if d.cancel != nil {
		return nil, errors.New("detector already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	updates := make(chan Update, 1)
	go d.run(loopCtx, updates)
	logging.LogEvent("camera detection started: source=%s interval=%s", d.source.Name(), d.interval)
	return updates, nil
}

// Stop cancels the ticker and waits for the in-flight tick to finish. It is
// safe to call more than once and before Start.
func (d *Detector) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logging.LogEvent("camera detection stopped")
}

func (d *Detector) run(ctx context.Context, updates chan Update) {
	defer close(d.done)
	defer close(updates)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			u, ok := d.tick(ctx)
			if !ok {
				continue
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			default:
				// Preview consumer is behind; keep only the newest.
				select {
				case <-updates:
				default:
				}
				updates <- u
			}
		}
	}
}

func (d *Detector) tick(ctx context.Context) (Update, bool) {
	img, err := d.source.Frame(ctx)
	if errors.Is(err, ErrNoFrame) || ctx.Err() != nil {
		return Update{}, false
	}
	if err == nil {
		var frame []byte
		frame, err = EncodeJPEG(img, DetectQuality)
		if err == nil {
			var res stats.ClassificationResult
			res, err = d.classifier.ClassifyFrame(ctx, frame)
			if err == nil {
				d.observe(nil)
				return Update{Result: res, At: d.now()}, true
			}
		}
	}
	if ctx.Err() != nil {
		return Update{}, false
	}
	logging.LogWarn("camera detection tick failed: %v", err)
	d.observe(err)
	return Update{Err: err, At: d.now()}, true
}

func (d *Detector) observe(err error) {
	if d.observer != nil {
		d.observer.ObserveCameraTick(err)
	}
}

// Capture classifies the current frame at full quality and folds the result
// into the session statistics.
func (d *Detector) Capture(ctx context.Context) (stats.ClassificationResult, error) {
	if d.folder == nil {
		return stats.ClassificationResult{}, errors.New("capture has no statistics sink")
	}
	img, err := d.source.Frame(ctx)
	if err != nil {
		return stats.ClassificationResult{}, err
	}
	data, err := EncodeJPEG(img, CaptureQuality)
	if err != nil {
		return stats.ClassificationResult{}, err
	}
	name := fmt.Sprintf("captura_%d.jpg", d.now().UnixMilli())
	results, err := d.classifier.Classify(ctx, []backend.Upload{{Name: name, Data: data}})
	if err != nil {
		return stats.ClassificationResult{}, err
	}
	if len(results) == 0 {
		return stats.ClassificationResult{}, fmt.Errorf("%w: capture returned no results", stats.ErrInvalidBatch)
	}
	if err := d.folder.Fold(results...); err != nil {
		return stats.ClassificationResult{}, err
	}
	return results[0], nil
}
