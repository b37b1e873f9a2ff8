package escombro

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mwiater/escombro/internal/i18n"
	"github.com/spf13/cobra"
)

// langCmd groups the language commands.
var langCmd = &cobra.Command{
	Use:   "lang",
	Short: "Show or change the interface language",
}

var langSetCmd = &cobra.Command{
	Use:   "set <code>",
	Short: "Save the interface language (" + strings.Join(i18n.SupportedLanguages(), ", ") + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		lang, err := app.SetLanguage(ctx, args[0])
		if err != nil {
			return fail(cmd, app, err)
		}
		notifySuccess(cmd.OutOrStdout(), app.T("lang.set_done", map[string]any{"lang": lang}))
		return nil
	},
}

var langShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active and saved language",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		saved := app.SavedLanguage()
		if saved == "" {
			saved = app.T("lang.none", nil)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", app.T("lang.active", nil), app.Translator.Language())
		fmt.Fprintf(out, "%s: %s\n", app.T("lang.saved", nil), saved)
		debugDump(cmd, map[string]any{
			"translationsLoaded": app.Translator.IsInitialized(),
			"gate":               app.Gate.State().String(),
			"available":          i18n.SupportedLanguages(),
		})
		return nil
	},
}

func init() {
	langCmd.AddCommand(langSetCmd, langShowCmd)
	rootCmd.AddCommand(langCmd)
}
