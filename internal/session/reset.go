package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/logging"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// AlwaysConfirm answers yes without asking. It backs --yes.
type AlwaysConfirm struct{}

func (AlwaysConfirm) Confirm(string) (bool, error) { return true, nil }

// PromptConfirmer reads the answer from a terminal.
type PromptConfirmer struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(p.Out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "si", "sí":
		return true, nil
	default:
		return false, nil
	}
}

// ResetOutcome reports what Reset did.
type ResetOutcome struct {
	Confirmed bool
	// Fragment is the localized initial results markup, empty when it could
	// not be reloaded.
	Fragment string
	// ReloadErr is set when the initial screen could not be fetched. The
	// local reset has still happened.
	ReloadErr error
}

// Reset clears the session after confirmation: local statistics first, then
// the server session in the background, then the initial results screen.
func (a *App) Reset(ctx context.Context, c Confirmer) (ResetOutcome, error) {
	ok, err := c.Confirm(a.T("reset.confirm", nil))
	if err != nil {
		return ResetOutcome{}, fmt.Errorf("confirm reset: %w", err)
	}
	if !ok {
		logging.LogEvent("session reset declined")
		return ResetOutcome{}, nil
	}

	if err := a.Store.Reset(); err != nil {
		return ResetOutcome{}, fmt.Errorf("reset statistics: %w", err)
	}
	a.View.Discard()
	if a.Metrics != nil {
		a.Metrics.ObserveReset()
	}

	a.goBackground(ctx, func(bg context.Context) {
		msg, err := a.Backend.ClearSession(bg)
		if err != nil {
			logging.LogWarn("clear server session: %v", err)
			return
		}
		logging.LogEvent("clear server session: %s", msg)
	})

	out := ResetOutcome{Confirmed: true}
	fragment, err := a.Backend.InitialFragment(ctx)
	if err != nil {
		logging.LogWarn("reload initial screen: %v", err)
		out.ReloadErr = err
		return out, nil
	}
	localized, err := i18n.Substitute(fragment, a.T)
	if err != nil {
		out.ReloadErr = err
		return out, nil
	}
	out.Fragment = localized
	return out, nil
}
