package escombro

import (
	"fmt"

	"github.com/mwiater/escombro/internal/i18n"
	"github.com/mwiater/escombro/internal/session"
	"github.com/spf13/cobra"
)

var resetYes bool

// resetCmd implements 'reset', which clears the session after confirmation.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the current session",
	Long:  `Ask for confirmation, then clear the local statistics, disable export, tell the server to drop its session and reload the initial screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := bootApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		var confirmer session.Confirmer = session.PromptConfirmer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
		if resetYes {
			confirmer = session.AlwaysConfirm{}
		}
		outcome, err := app.Reset(ctx, confirmer)
		if err != nil {
			return fail(cmd, app, err)
		}
		out := cmd.OutOrStdout()
		if !outcome.Confirmed {
			notifyInfo(out, app.T("reset.cancelled", nil))
			return nil
		}
		if outcome.ReloadErr != nil {
			notifyError(cmd.ErrOrStderr(), app.T("errors.reload_initial", nil))
		} else if text := i18n.PlainText(outcome.Fragment); text != "" {
			fmt.Fprintln(out, text)
		}
		notifyInfo(out, "🧹 "+app.T("reset.done", nil))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}
