package escombro

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/k0kubun/pp"
	"github.com/mwiater/escombro/internal/appconfig"
	"github.com/mwiater/escombro/internal/backend"
	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/logging"
	"github.com/mwiater/escombro/internal/session"
	"github.com/mwiater/escombro/internal/stats"
	"github.com/mwiater/escombro/internal/view"
	"github.com/spf13/cobra"
)

// readyTimeout bounds the wait for localization before statistics are used.
const readyTimeout = 15 * time.Second

// newApp is swapped in tests to point at an httptest backend.
var newApp = func(cfg *appconfig.Config) *session.App {
	return session.New(cfg)
}

// bootApp builds the session and blocks until persisted statistics have been
// restored. The caller must Close the returned app.
func bootApp(ctx context.Context) (*session.App, error) {
	cfg := GetConfig()
	if cfg == nil {
		cfg = &appconfig.Config{}
	}
	app := newApp(cfg)
	app.Start(ctx)

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := app.Ready(readyCtx); err != nil {
		app.Close()
		return nil, err
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := app.Metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logging.LogWarn("metrics server: %v", err)
			}
		}()
	}
	return app, nil
}

// userMessage maps an error to the localized notification text.
func userMessage(app *session.App, err error) string {
	var be *backend.Error
	switch {
	case errors.Is(err, backend.ErrNoValidImages):
		return app.T("errors.no_valid_images", nil)
	case errors.Is(err, stats.ErrInvalidBatch):
		return app.T("errors.invalid_results", nil)
	case errors.Is(err, view.ErrNoData):
		return app.T("stats.no_data_notice", nil)
	case errors.Is(err, session.ErrExportDisabled):
		return app.T("export.disabled", nil)
	case errors.Is(err, i18n.ErrUnsupportedLanguage):
		return app.T("lang.unsupported", map[string]any{
			"lang":      unsupportedCode(err),
			"available": strings.Join(i18n.SupportedLanguages(), ", "),
		})
	case errors.As(err, &be):
		msg := app.T(be.Kind.MessageKey(), nil)
		if be.Kind == backend.KindGeneric && be.Message != "" {
			msg = fmt.Sprintf("%s (%s)", msg, be.Message)
		}
		return msg
	default:
		return app.T("errors.generic", nil) + ": " + err.Error()
	}
}

// unsupportedCode recovers the quoted code from an ErrUnsupportedLanguage.
func unsupportedCode(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '"'); i >= 0 {
		if j := strings.LastIndexByte(msg, '"'); j > i {
			return msg[i+1 : j]
		}
	}
	return msg
}

// fail prints err as a notification and returns it so cobra sets the exit code.
func fail(cmd *cobra.Command, app *session.App, err error) error {
	logging.LogWarn("%s: %v", cmd.CommandPath(), err)
	notifyError(cmd.ErrOrStderr(), userMessage(app, err))
	cmd.SilenceErrors = true
	return err
}

// debugDump pretty-prints v to stderr in debug mode.
func debugDump(cmd *cobra.Command, v any) {
	if !DebugEnabled() {
		return
	}
	pp.Fprintln(cmd.ErrOrStderr(), v)
}
