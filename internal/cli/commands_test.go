package escombro

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeBackend struct {
	classifyCalls atomic.Int32
	clearCalls    atomic.Int32
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/static/locales/"):
		w.WriteHeader(http.StatusNotFound)
	case r.URL.Path == "/classify":
		f.classifyCalls.Add(1)
		io.WriteString(w, `{"results":[{"predicted_class":"hormigon","confidence":90,"filename":"wall.png","probabilities":[{"class_name":"hormigon","probability":90},{"class_name":"piedra","probability":10}]}]}`)
	case r.URL.Path == "/api/clear_session":
		f.clearCalls.Add(1)
		io.WriteString(w, `{"message":"ok"}`)
	case r.URL.Path == "/api/export":
		w.Header().Set("Content-Disposition", `attachment; filename="Resultados_sesion.csv"`)
		io.WriteString(w, "archivo,clase\nwall.png,hormigon\n")
	case r.URL.Path == "/api/gradcam":
		io.WriteString(w, `{"heatmap_urls":["/gradcam_outputs/gradcam_1_wall_hormigon.jpg"]}`)
	case r.URL.Path == "/api/health":
		io.WriteString(w, `{"status":"healthy","model_loaded":true,"device":"cpu","supported_formats":["jpg","png"]}`)
	case r.URL.Path == "/":
		io.WriteString(w, `<html><body><div id="results-grid"><p data-i18n="welcome.title">x</p></div></body></html>`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func resetCommandFlags() {
	resetAllFlags()
	resetYes = false
	exportOut = ""
	statsNoTUI = false
	statsDump = false
	statsPDF = ""
	gradcamSave = ""
}

// runCLI executes the root command against a fresh state directory and the
// given backend, returning combined output.
func runCLI(t *testing.T, backendURL, stateDir string, args ...string) (string, error) {
	t.Helper()
	useConfig(t, writeTempConfig(t, "{}"))
	resetCommandFlags()
	t.Cleanup(resetCommandFlags)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetIn(strings.NewReader(""))
	full := append([]string{
		"--backendURL", backendURL,
		"--stateDir", stateDir,
		"--language", "en",
		"--logFile", filepath.Join(stateDir, "test.log"),
	}, args...)
	rootCmd.SetArgs(full)
	t.Cleanup(func() { rootCmd.SetArgs([]string{}) })
	_, err := rootCmd.ExecuteC()
	return buf.String(), err
}

func newFakeServer(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)
	return fb, srv
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func TestClassifyCommandPrintsCardsAndPersists(t *testing.T) {
	fb, srv := newFakeServer(t)
	stateDir := t.TempDir()
	img := writeImage(t, t.TempDir(), "wall.png")

	out, err := runCLI(t, srv.URL, stateDir, "classify", img)
	if err != nil {
		t.Fatalf("classify: %v\n%s", err, out)
	}
	if fb.classifyCalls.Load() != 1 {
		t.Fatalf("expected one classify call, got %d", fb.classifyCalls.Load())
	}
	for _, want := range []string{"Concrete", "1 image(s) processed successfully"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %s", want, out)
		}
	}
	data, err := os.ReadFile(filepath.Join(stateDir, "storage.json"))
	if err != nil {
		t.Fatalf("read storage: %v", err)
	}
	if !strings.Contains(string(data), "totalProcessed") {
		t.Fatalf("expected persisted snapshot, got %s", data)
	}
}

func TestClassifyCommandRejectsNonImages(t *testing.T) {
	fb, srv := newFakeServer(t)
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, srv.URL, t.TempDir(), "classify", text)
	if err == nil {
		t.Fatalf("expected error for a batch without images")
	}
	if fb.classifyCalls.Load() != 0 {
		t.Fatalf("no request expected, got %d", fb.classifyCalls.Load())
	}
	if !strings.Contains(out, `"notes.txt" is not a valid image`) || !strings.Contains(out, "no valid images") {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestStatsCommandWithoutData(t *testing.T) {
	_, srv := newFakeServer(t)
	out, err := runCLI(t, srv.URL, t.TempDir(), "stats", "--no-tui")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if !strings.Contains(out, "No data to show yet") {
		t.Fatalf("expected no-data notice, got %s", out)
	}
}

func TestStatsCommandWritesCharts(t *testing.T) {
	_, srv := newFakeServer(t)
	stateDir := t.TempDir()
	img := writeImage(t, t.TempDir(), "wall.png")
	if out, err := runCLI(t, srv.URL, stateDir, "classify", img); err != nil {
		t.Fatalf("classify: %v\n%s", err, out)
	}

	report := filepath.Join(t.TempDir(), "session.pdf")
	out, err := runCLI(t, srv.URL, stateDir, "stats", "--no-tui", "--pdf", report)
	if err != nil {
		t.Fatalf("stats: %v\n%s", err, out)
	}
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("expected pdf report: %v", err)
	}
	for _, name := range []string{"class_distribution.png", "confidence_histogram.png"} {
		if _, err := os.Stat(filepath.Join(stateDir, "charts", name)); err != nil {
			t.Fatalf("expected chart %s: %v", name, err)
		}
	}
	if !strings.Contains(out, "Concrete") {
		t.Fatalf("expected distribution in output, got %s", out)
	}
}

func TestExportCommand(t *testing.T) {
	_, srv := newFakeServer(t)
	stateDir := t.TempDir()
	outDir := t.TempDir()

	out, err := runCLI(t, srv.URL, stateDir, "export", "--out", outDir)
	if err == nil {
		t.Fatalf("expected export to be disabled on an empty session, got %s", out)
	}
	if !strings.Contains(out, "There are no results to export") {
		t.Fatalf("unexpected output %s", out)
	}

	img := writeImage(t, t.TempDir(), "wall.png")
	if out, err := runCLI(t, srv.URL, stateDir, "classify", img); err != nil {
		t.Fatalf("classify: %v\n%s", err, out)
	}
	out, err = runCLI(t, srv.URL, stateDir, "export", "--out", outDir)
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "Resultados_sesion.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "archivo,clase") {
		t.Fatalf("unexpected csv %q", data)
	}
}

func TestResetCommand(t *testing.T) {
	fb, srv := newFakeServer(t)
	stateDir := t.TempDir()
	img := writeImage(t, t.TempDir(), "wall.png")
	if out, err := runCLI(t, srv.URL, stateDir, "classify", img); err != nil {
		t.Fatalf("classify: %v\n%s", err, out)
	}

	// Empty stdin declines the prompt.
	out, err := runCLI(t, srv.URL, stateDir, "reset")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out, "Cancelled") || fb.clearCalls.Load() != 0 {
		t.Fatalf("expected cancellation, got %s (clear calls %d)", out, fb.clearCalls.Load())
	}

	out, err = runCLI(t, srv.URL, stateDir, "reset", "--yes")
	if err != nil {
		t.Fatalf("reset --yes: %v", err)
	}
	if !strings.Contains(out, "Welcome") || !strings.Contains(out, "Session cleared") {
		t.Fatalf("unexpected output %s", out)
	}
	if fb.clearCalls.Load() != 1 {
		t.Fatalf("expected clear_session once, got %d", fb.clearCalls.Load())
	}
	data, err := os.ReadFile(filepath.Join(stateDir, "storage.json"))
	if err == nil && strings.Contains(string(data), "totalProcessed") {
		t.Fatalf("snapshot should be gone, got %s", data)
	}
}

func TestGradCAMCommandSavesHeatmaps(t *testing.T) {
	_, srv := newFakeServer(t)
	saveDir := t.TempDir()
	// The fake serves 404 for the image itself; only listing is checked here.
	out, err := runCLI(t, srv.URL, t.TempDir(), "gradcam", "wall.png")
	if err != nil {
		t.Fatalf("gradcam: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Concrete") || !strings.Contains(out, "gradcam_1_wall_hormigon.jpg") {
		t.Fatalf("unexpected output %s", out)
	}

	_, err = runCLI(t, srv.URL, t.TempDir(), "gradcam", "wall.png", "--save", saveDir)
	if err == nil {
		t.Fatalf("expected download error from the fake backend")
	}
}

func TestHealthCommand(t *testing.T) {
	_, srv := newFakeServer(t)
	out, err := runCLI(t, srv.URL, t.TempDir(), "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	for _, want := range []string{"Status:            healthy", "Model loaded:      true", "jpg, png"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got %s", want, out)
		}
	}
}

func TestLangCommands(t *testing.T) {
	_, srv := newFakeServer(t)
	stateDir := t.TempDir()

	out, err := runCLI(t, srv.URL, stateDir, "lang", "set", "es-ES")
	if err != nil {
		t.Fatalf("lang set: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Idioma cambiado a es") {
		t.Fatalf("expected normalized language, got %s", out)
	}

	// The saved language wins over --language en once applied.
	out, err = runCLI(t, srv.URL, stateDir, "lang", "show")
	if err != nil {
		t.Fatalf("lang show: %v", err)
	}
	if !strings.Contains(out, "Idioma activo: es") || !strings.Contains(out, "Idioma guardado: es") {
		t.Fatalf("unexpected output %s", out)
	}

	out, err = runCLI(t, srv.URL, stateDir, "--debug", "lang", "show")
	if err != nil {
		t.Fatalf("lang show --debug: %v", err)
	}
	for _, want := range []string{"translationsLoaded", "gate", "ready", "available"} {
		if !strings.Contains(out, want) {
			t.Fatalf("debug dump missing %q:\n%s", want, out)
		}
	}
}

func TestLangSetRejectsLanguageWithoutCatalog(t *testing.T) {
	_, srv := newFakeServer(t)
	stateDir := t.TempDir()

	out, err := runCLI(t, srv.URL, stateDir, "lang", "set", "fr")
	if err == nil {
		t.Fatalf("expected an error for fr, got %s", out)
	}
	if !strings.Contains(out, `Unsupported language "fr". Available: en, es`) {
		t.Fatalf("unexpected output %s", out)
	}
	data, _ := os.ReadFile(filepath.Join(stateDir, "storage.json"))
	if strings.Contains(string(data), "selectedLang") {
		t.Fatalf("unsupported language must not be saved, got %s", data)
	}
}
