package escombro

import (
	"fmt"
	"path/filepath"

	"github.com/mwiater/escombro/internal/view"
	"github.com/spf13/cobra"
)

// classifyCmd implements 'classify', which uploads images and folds the
// results into the session statistics.
var classifyCmd = &cobra.Command{
	Use:   "classify <image>...",
	Short: "Classify one or more images",
	Long:  `Upload images to the classifier in a single batch, print one card per result and add them to the session statistics.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := bootApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		notifyInfo(out, app.T("status.analyzing", map[string]any{"count": len(args)}))

		results, rejected, err := app.ClassifyFiles(ctx, args)
		for _, r := range rejected {
			notifyError(cmd.ErrOrStderr(), app.T("errors.not_image", map[string]any{"name": filepath.Base(r.Path)}))
		}
		if err != nil {
			return fail(cmd, app, err)
		}
		debugDump(cmd, results)

		if JSONModeEnabled() {
			return printJSON(out, results)
		}
		for _, r := range results {
			fmt.Fprintln(out, view.RenderCard(r, app.T))
		}
		notifySuccess(out, app.T("results.processed_ok", map[string]any{"count": len(results)}))
		s := app.View.Summary()
		fmt.Fprintln(out, view.RenderSummary(s, app.T))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
