// Package session wires the statistics store, localization and backend
// client into one application instance.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mwiater/escombro/internal/appconfig"
	"github.com/mwiater/escombro/internal/backend"
	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/logging"
	"github.com/mwiater/escombro/internal/stats"
	"github.com/mwiater/escombro/internal/storage"
	"github.com/mwiater/escombro/internal/telemetry"
	"github.com/mwiater/escombro/internal/util"
	"github.com/mwiater/escombro/internal/view"
)

// ErrExportDisabled is returned by Export while the session is empty.
var ErrExportDisabled = errors.New("export disabled: no results in session")

// backgroundTimeout bounds fire-and-forget requests that outlive a command.
const backgroundTimeout = 5 * time.Second

// App is one running client session.
type App struct {
	Config     *appconfig.Config
	Storage    storage.Storage
	Backend    *backend.Client
	Translator *i18n.Translator
	Gate       *i18n.Gate
	Store      *stats.Store
	View       *view.View
	Metrics    *telemetry.Metrics

	startCtx      context.Context
	mu            sync.Mutex
	exportEnabled bool
	background    sync.WaitGroup
}

// New builds an App backed by the on-disk store named in cfg.
func New(cfg *appconfig.Config) *App {
	return NewWith(cfg, storage.NewFileStore(cfg.StorePath()), backend.New(cfg), telemetry.New())
}

// NewWith builds an App from explicit parts; tests use it with a MemoryStore
// and an httptest backend.
func NewWith(cfg *appconfig.Config, st storage.Storage, client *backend.Client, metrics *telemetry.Metrics) *App {
	a := &App{
		Config:     cfg,
		Storage:    st,
		Backend:    client,
		Translator: i18n.NewTranslator(client),
		Store:      stats.NewStore(st),
		Metrics:    metrics,
	}
	a.View = view.New(cfg.ChartsDirPath(), a.T)

	if metrics != nil {
		client.SetObserver(metrics)
		a.Store.SetObserver(metrics)
	}
	a.Store.OnChange(a.View.Refresh)
	a.Store.OnExportChange(a.setExportEnabled)

	saved := a.SavedLanguage()
	a.Gate = i18n.NewGate(saved, a.Translator.Language, a.Store.RestoreIfPersisted)
	a.Translator.OnLoaded(func() {
		a.Gate.TranslationsLoaded()
		if saved != "" {
			a.Translator.ChangeLanguage(a.startContext(), saved)
		}
	})
	a.Translator.OnLanguageChanged(a.Gate.LanguageChanged)
	return a
}

// Start kicks off the initial translation load. Restoring the persisted
// statistics happens once the gate opens.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.startCtx = ctx
	a.mu.Unlock()
	a.Translator.Load(ctx, a.DetectLanguage())
}

func (a *App) startContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startCtx == nil {
		return context.Background()
	}
	return a.startCtx
}

// Ready blocks until the persisted statistics have been restored. Anything
// that folds must call it first.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Gate.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for localization (gate %s): %w", a.Gate.State(), err)
	}
	return nil
}

// Close waits for background requests such as clear_session.
func (a *App) Close() {
	a.background.Wait()
	a.Translator.Wait()
}

// T translates with the active language.
func (a *App) T(key string, args map[string]any) string {
	return a.Translator.T(key, args)
}

// SavedLanguage returns the language chosen with `lang set`, if any.
func (a *App) SavedLanguage() string {
	v, ok, err := a.Storage.Get(storage.KeySelectedLang)
	if err != nil {
		logging.LogWarn("read saved language: %v", err)
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// DetectLanguage picks the startup language: config, then LANG, then the
// fallback.
func (a *App) DetectLanguage() string {
	if a.Config.Language != "" {
		return i18n.Normalize(a.Config.Language)
	}
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" && v != "C" && v != "POSIX" {
			tag, _, _ := strings.Cut(v, ".")
			return i18n.Normalize(strings.ReplaceAll(tag, "_", "-"))
		}
	}
	return i18n.FallbackLanguage
}

// SetLanguage persists lang and switches the translator to it.
func (a *App) SetLanguage(ctx context.Context, lang string) (string, error) {
	if !i18n.Supported(lang) {
		return "", fmt.Errorf("%w: %q", i18n.ErrUnsupportedLanguage, lang)
	}
	lang = i18n.Normalize(lang)
	if err := a.Storage.Set(storage.KeySelectedLang, lang); err != nil {
		return "", fmt.Errorf("save language: %w", err)
	}
	done := make(chan struct{})
	var once sync.Once
	a.Translator.OnLanguageChanged(func(changed string) {
		if changed == lang {
			once.Do(func() { close(done) })
		}
	})
	a.Translator.ChangeLanguage(ctx, lang)
	select {
	case <-done:
		return lang, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *App) setExportEnabled(enabled bool) {
	a.mu.Lock()
	a.exportEnabled = enabled
	a.mu.Unlock()
}

// ExportEnabled mirrors the export button state.
func (a *App) ExportEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exportEnabled
}

// ClassifyFiles validates, uploads and folds a batch of local images.
func (a *App) ClassifyFiles(ctx context.Context, paths []string) ([]stats.ClassificationResult, []backend.Rejected, error) {
	uploads, rejected, err := backend.LoadUploads(paths)
	if err != nil {
		return nil, rejected, err
	}
	results, err := a.Backend.Classify(ctx, uploads)
	if err != nil {
		return nil, rejected, err
	}
	if err := a.Store.Fold(results...); err != nil {
		return nil, rejected, err
	}
	return results, rejected, nil
}

// Export downloads the server CSV into dir and returns the written path.
func (a *App) Export(ctx context.Context, dir string) (string, error) {
	if !a.ExportEnabled() {
		return "", ErrExportDisabled
	}
	exp, err := a.Backend.Export(ctx, a.Translator.Language())
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = a.Config.ExportDirPath()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, exp.Filename)
	if err := util.WriteFile(path, exp.Body); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	logging.LogEvent("exported %d bytes to %s", len(exp.Body), path)
	return path, nil
}

// goBackground runs fn detached from the caller's cancellation but bounded by
// backgroundTimeout. Close waits for it.
func (a *App) goBackground(ctx context.Context, fn func(context.Context)) {
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		fn(bg)
	}()
}
