package i18n

import (
	"context"
	"sync"

	"github.com/mwiater/escombro/internal/logging"
)

// GateState is the position of the readiness latch.
type GateState int

const (
	// GateUninitialized waits for translations to load.
	GateUninitialized GateState = iota
	// GateAwaitingLanguageSwitch waits for the saved language to be applied.
	GateAwaitingLanguageSwitch
	// GateReady is terminal: the restore callback has run.
	GateReady
)

func (s GateState) String() string {
	switch s {
	case GateUninitialized:
		return "uninitialized"
	case GateAwaitingLanguageSwitch:
		return "awaiting-language-switch"
	case GateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Gate is a two-condition latch: translations loaded and saved language
// applied. When both hold it runs onReady exactly once and closes Done.
type Gate struct {
	mu                 sync.Mutex
	savedLang          string
	activeLang         func() string
	translationsLoaded bool
	languageApplied    bool
	fired              bool
	onReady            func()
	done               chan struct{}
}

// NewGate builds a gate for the language recorded in durable storage (empty
// when none was saved). activeLang reports the translator's current language.
func NewGate(savedLang string, activeLang func() string, onReady func()) *Gate {
	g := &Gate{
		activeLang: activeLang,
		onReady:    onReady,
		done:       make(chan struct{}),
	}
	if savedLang != "" {
		g.savedLang = Normalize(savedLang)
	} else {
		g.languageApplied = true
	}
	return g
}

// TranslationsLoaded records that the initial catalog load finished.
func (g *Gate) TranslationsLoaded() {
	g.mu.Lock()
	g.translationsLoaded = true
	if !g.languageApplied && g.activeLang != nil && Normalize(g.activeLang()) == g.savedLang {
		g.languageApplied = true
	}
	fire := g.arm()
	g.mu.Unlock()
	g.run(fire)
}

// LanguageChanged records a completed language switch. Switches to any
// language other than the saved one do not satisfy the gate.
func (g *Gate) LanguageChanged(lang string) {
	g.mu.Lock()
	if !g.languageApplied && Normalize(lang) == g.savedLang {
		g.languageApplied = true
	}
	fire := g.arm()
	g.mu.Unlock()
	g.run(fire)
}

// arm reports whether this call is the one that must fire. Callers hold mu.
func (g *Gate) arm() bool {
	if g.fired || !g.translationsLoaded || !g.languageApplied {
		return false
	}
	g.fired = true
	return true
}

func (g *Gate) run(fire bool) {
	if !fire {
		return
	}
	logging.LogEvent("[I18N] localization ready, restoring session statistics")
	if g.onReady != nil {
		g.onReady()
	}
	close(g.done)
}

// State reports the latch position.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.fired:
		return GateReady
	case g.translationsLoaded && !g.languageApplied:
		return GateAwaitingLanguageSwitch
	default:
		return GateUninitialized
	}
}

// Done is closed after the ready callback has returned.
func (g *Gate) Done() <-chan struct{} { return g.done }

// Wait blocks until the gate is ready or ctx ends.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
