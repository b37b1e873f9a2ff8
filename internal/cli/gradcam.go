package escombro

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/mwiater/escombro/internal/backend"
	"github.com/mwiater/escombro/internal/util"
	"github.com/mwiater/escombro/internal/view"
	"github.com/spf13/cobra"
)

var gradcamSave string

// gradcamCmd implements 'gradcam', which requests heatmaps for an upload.
var gradcamCmd = &cobra.Command{
	Use:   "gradcam <uploaded-filename>",
	Short: "Generate Grad-CAM heatmaps for a classified image",
	Long:  `Ask the backend for Grad-CAM heatmaps of an image previously sent with 'classify' (use the filename shown on its card). Optionally download them.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := bootApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		notifyInfo(out, app.T("gradcam.generating", nil))
		maps, err := app.Backend.GradCAM(ctx, args[0])
		if err != nil {
			notifyError(cmd.ErrOrStderr(), app.T("errors.gradcam", nil))
			return fail(cmd, app, err)
		}
		if len(maps) == 0 {
			notifyInfo(out, app.T("gradcam.none", nil))
			return nil
		}
		if JSONModeEnabled() {
			return printJSON(out, maps)
		}
		for _, h := range maps {
			fmt.Fprintf(out, "%s  %s\n", heatmapLabel(h, app.T), h.URL)
			if gradcamSave == "" {
				continue
			}
			data, err := app.Backend.Download(ctx, h.URL)
			if err != nil {
				return fail(cmd, app, err)
			}
			if err := os.MkdirAll(gradcamSave, 0o755); err != nil {
				return fail(cmd, app, err)
			}
			dst := filepath.Join(gradcamSave, path.Base(h.URL))
			if err := util.WriteFile(dst, data); err != nil {
				return fail(cmd, app, err)
			}
			notifySuccess(out, dst)
		}
		return nil
	},
}

func heatmapLabel(h backend.Heatmap, translate func(string, map[string]any) string) string {
	if !h.Known {
		return "❓ " + translate("gradcam.unknown", nil)
	}
	return h.Class.Emoji() + " " + view.ClassLabel(h.Class, translate)
}

func init() {
	gradcamCmd.Flags().StringVar(&gradcamSave, "save", "", "download heatmaps into this directory")
	rootCmd.AddCommand(gradcamCmd)
}
