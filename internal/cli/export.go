package escombro

import (
	"errors"
	"path/filepath"

	"github.com/mwiater/escombro/internal/session"
	"github.com/spf13/cobra"
)

var exportOut string

// exportCmd implements 'export', which saves the server-built CSV.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session results as CSV",
	Long:  `Download the CSV built by the backend for the current session, in the active language, and save it under the name the server suggests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := bootApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		path, err := app.Export(ctx, exportOut)
		if err != nil {
			if !errors.Is(err, session.ErrExportDisabled) {
				notifyError(cmd.ErrOrStderr(), app.T("errors.export", nil))
			}
			return fail(cmd, app, err)
		}
		notifySuccess(cmd.OutOrStdout(), app.T("export.done", map[string]any{"filename": filepath.Base(path)}))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "directory to save the CSV in (defaults to exportDir)")
	rootCmd.AddCommand(exportCmd)
}
