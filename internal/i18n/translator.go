package i18n

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mwiater/escombro/internal/logging"
)

// DefaultFetchTimeout bounds one remote catalog request. It stays well under
// the time callers wait for readiness so a stalled backend only costs the
// embedded fallback.
const DefaultFetchTimeout = 2 * time.Second

// Loader fetches a raw catalog for a language, usually from the backend.
type Loader interface {
	Locale(ctx context.Context, lang string) ([]byte, error)
}

// Translator resolves keys against the active language. Loading and
// language switches run asynchronously and announce completion through the
// OnLoaded and OnLanguageChanged callbacks.
type Translator struct {
	mu          sync.RWMutex
	loader      Loader
	catalogs    map[string]Catalog
	active      string
	initialized bool

	fetchTimeout time.Duration
	remoteDown   bool

	hookMu    sync.Mutex
	onLoaded  []func()
	onChanged []func(lang string)
	wg        sync.WaitGroup
}

// NewTranslator creates a translator; loader may be nil to use only the
// embedded catalogs.
func NewTranslator(loader Loader) *Translator {
	return &Translator{
		loader:       loader,
		catalogs:     map[string]Catalog{},
		active:       FallbackLanguage,
		fetchTimeout: DefaultFetchTimeout,
	}
}

// SetFetchTimeout changes the per-request bound on remote catalog fetches.
func (t *Translator) SetFetchTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fetchTimeout = d
}

// OnLoaded registers a callback fired once the initial load completes.
func (t *Translator) OnLoaded(fn func()) {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	t.onLoaded = append(t.onLoaded, fn)
}

// OnLanguageChanged registers a callback fired after every language switch.
func (t *Translator) OnLanguageChanged(fn func(lang string)) {
	t.hookMu.Lock()
	defer t.hookMu.Unlock()
	t.onChanged = append(t.onChanged, fn)
}

// Load starts the initial load of lang and the fallback catalog in the
// background. It returns immediately.
func (t *Translator) Load(ctx context.Context, lang string) {
	lang = Normalize(lang)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.ensureCatalog(ctx, FallbackLanguage)
		t.ensureCatalog(ctx, lang)

		t.mu.Lock()
		t.active = lang
		t.initialized = true
		t.mu.Unlock()
		logging.LogEvent("[I18N] translations loaded, active language %s", lang)

		t.hookMu.Lock()
		hooks := append([]func(){}, t.onLoaded...)
		t.hookMu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	}()
}

// ChangeLanguage switches to lang in the background.
func (t *Translator) ChangeLanguage(ctx context.Context, lang string) {
	lang = Normalize(lang)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.ensureCatalog(ctx, lang)

		t.mu.Lock()
		t.active = lang
		t.mu.Unlock()
		logging.LogEvent("[I18N] language changed to %s", lang)

		t.hookMu.Lock()
		hooks := append([]func(string){}, t.onChanged...)
		t.hookMu.Unlock()
		for _, fn := range hooks {
			fn(lang)
		}
	}()
}

// Wait blocks until pending loads and switches have finished.
func (t *Translator) Wait() { t.wg.Wait() }

// ensureCatalog loads lang from the loader, falling back to the embedded
// copy. Once a fetch times out the loader is skipped for the rest of the
// session.
func (t *Translator) ensureCatalog(ctx context.Context, lang string) {
	t.mu.RLock()
	_, ok := t.catalogs[lang]
	useRemote := t.loader != nil && !t.remoteDown
	timeout := t.fetchTimeout
	t.mu.RUnlock()
	if ok {
		return
	}

	var catalog Catalog
	if useRemote {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		data, err := t.loader.Locale(fetchCtx, lang)
		timedOut := errors.Is(fetchCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			catalog, err = ParseCatalog(data)
		}
		if err != nil {
			logging.LogWarn("[I18N] remote catalog %s unavailable, using embedded copy: %v", lang, err)
			catalog = nil
		}
		if timedOut {
			t.mu.Lock()
			t.remoteDown = true
			t.mu.Unlock()
		}
	}
	if catalog == nil {
		embeddedCatalog, err := EmbeddedCatalog(lang)
		if err != nil {
			logging.LogWarn("[I18N] %v", err)
			return
		}
		catalog = embeddedCatalog
	}

	t.mu.Lock()
	t.catalogs[lang] = catalog
	t.mu.Unlock()
}

// Language returns the active language code.
func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// IsInitialized reports whether the initial load has completed.
func (t *Translator) IsInitialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initialized
}

// T translates key in the active language, falling back to the fallback
// language and finally to the key itself.
func (t *Translator) T(key string, args map[string]any) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c, ok := t.catalogs[t.active]; ok {
		if v, ok := c[key]; ok {
			return interpolate(v, args)
		}
	}
	if c, ok := t.catalogs[FallbackLanguage]; ok {
		if v, ok := c[key]; ok {
			return interpolate(v, args)
		}
	}
	return key
}
