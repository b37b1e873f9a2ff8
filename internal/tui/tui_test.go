package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mwiater/escombro/internal/camera"
	"github.com/mwiater/escombro/internal/stats"
	"github.com/mwiater/escombro/internal/storage"
	"github.com/mwiater/escombro/internal/view"
)

var labels = map[string]string{
	"classes.piedra":        "Stone",
	"classes.yeso":          "Plaster",
	"camera.point":          "Point at a material",
	"camera.capture_done":   "Capture processed successfully",
	"camera.capture_error":  "Error capturing photo",
	"camera.disconnected":   "Camera disconnected",
	"camera.last_detection": "Last detection: {{time}}",
	"stats.help":            "r: refresh · q: close",
}

func translate(key string, args map[string]any) string {
	v, ok := labels[key]
	if !ok {
		return key
	}
	for k, a := range args {
		v = strings.ReplaceAll(v, "{{"+k+"}}", a.(string))
	}
	return v
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func panelFor(t *testing.T, results ...stats.ClassificationResult) (view.Panel, *stats.Store, *view.View) {
	t.Helper()
	store := stats.NewStore(storage.NewMemoryStore())
	if err := store.Fold(results...); err != nil {
		t.Fatal(err)
	}
	v := view.New(t.TempDir(), translate)
	panel, err := v.OpenPanel(store.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	return panel, store, v
}

func TestStatsModelKeys(t *testing.T) {
	panel, store, v := panelFor(t, stats.ClassificationResult{PredictedClass: "piedra", Confidence: 70})
	reopened := 0
	m := newStatsModel(panel, func() (view.Panel, error) {
		reopened++
		return v.OpenPanel(store.Snapshot())
	}, translate)

	if err := store.Fold(stats.ClassificationResult{PredictedClass: "yeso", Confidence: 30}); err != nil {
		t.Fatal(err)
	}
	m.Update(key("r"))
	if reopened != 1 || m.panel.Summary.Total != 2 {
		t.Fatalf("refresh did not reopen the panel: reopened=%d total=%d", reopened, m.panel.Summary.Total)
	}

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m = newModel.(*statsModel)
	if m.viewport.Width != 96 || m.viewport.Height != 36 {
		t.Fatalf("viewport = %dx%d", m.viewport.Width, m.viewport.Height)
	}
	if !strings.Contains(m.View(), "r: refresh") {
		t.Fatalf("help line missing")
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestStatsModelRefreshErrorKeepsPanel(t *testing.T) {
	panel, _, _ := panelFor(t, stats.ClassificationResult{PredictedClass: "piedra", Confidence: 70})
	m := newStatsModel(panel, func() (view.Panel, error) { return view.Panel{}, view.ErrNoData }, translate)
	m.Update(key("r"))
	if !errors.Is(m.err, view.ErrNoData) || m.panel.Summary.Total != 1 {
		t.Fatalf("err=%v total=%d", m.err, m.panel.Summary.Total)
	}
}

type fakeCapturer struct {
	result stats.ClassificationResult
	err    error
	calls  int
}

func (f *fakeCapturer) Capture(ctx context.Context) (stats.ClassificationResult, error) {
	f.calls++
	return f.result, f.err
}

func TestCameraModelPreviewAndCapture(t *testing.T) {
	updates := make(chan camera.Update, 1)
	capt := &fakeCapturer{result: stats.ClassificationResult{PredictedClass: "yeso", Confidence: 91}}
	m := newCameraModel(context.Background(), capt, updates, translate)

	if !strings.Contains(m.View(), "Point at a material") {
		t.Fatalf("idle view should ask to point the camera")
	}

	at := time.Date(2025, 3, 1, 10, 11, 12, 0, time.UTC)
	_, cmd := m.Update(previewMsg(camera.Update{Result: stats.ClassificationResult{PredictedClass: "piedra", Confidence: 64}, At: at}))
	if cmd == nil {
		t.Fatal("expected the model to keep listening for previews")
	}
	out := m.View()
	if !strings.Contains(out, "Stone") || !strings.Contains(out, "64.0%") || !strings.Contains(out, "10:11:12") {
		t.Fatalf("preview not rendered:\n%s", out)
	}

	_, cmd = m.Update(key("c"))
	if cmd == nil || !m.capturing {
		t.Fatal("expected capture command")
	}
	if _, again := m.Update(key("c")); again != nil {
		t.Fatal("second capture must wait for the first")
	}
	m.Update(cmd())
	if m.capturing || len(m.captured) != 1 || capt.calls != 1 {
		t.Fatalf("capture not recorded: capturing=%v captured=%d calls=%d", m.capturing, len(m.captured), capt.calls)
	}
	if !strings.Contains(m.View(), "Capture processed successfully") {
		t.Fatalf("capture status missing")
	}
}

func TestCameraModelCaptureError(t *testing.T) {
	capt := &fakeCapturer{err: errors.New("backend down")}
	m := newCameraModel(context.Background(), capt, make(chan camera.Update), translate)
	_, cmd := m.Update(key("c"))
	m.Update(cmd())
	if !m.statusErr || !strings.Contains(m.status, "backend down") {
		t.Fatalf("status = %q err=%v", m.status, m.statusErr)
	}
}

func TestCameraModelQuitsWhenPreviewCloses(t *testing.T) {
	updates := make(chan camera.Update)
	close(updates)
	m := newCameraModel(context.Background(), &fakeCapturer{}, updates, translate)

	msg := waitForPreview(updates)()
	if _, ok := msg.(previewClosed); !ok {
		t.Fatalf("expected previewClosed, got %T", msg)
	}
	_, cmd := m.Update(msg)
	if cmd == nil || !m.closed {
		t.Fatal("expected quit after the preview stream closed")
	}
	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Fatal("expected quit command")
	}
}
