package escombro

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mwiater/escombro/internal/camera"
	"github.com/mwiater/escombro/internal/tui"
	"github.com/mwiater/escombro/internal/view"
	"github.com/spf13/cobra"
)

// cameraCmd implements 'camera', the live detection panel.
var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Run live detection from a camera source",
	Long: `Poll a camera snapshot URL (or cycle through a directory of frames), classify one frame per interval for preview, and press 'c' to capture a frame into the session statistics.

Preview detections are never counted. Stop with 'q', Ctrl+C or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := bootApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		cfg := app.Config
		source, err := camera.OpenSource(cfg.CameraSource, &http.Client{Timeout: cfg.RequestTimeout()})
		if err != nil {
			return fail(cmd, app, err)
		}
		detector := camera.NewDetector(source, app.Backend, app.Store, cfg.CameraInterval())
		detector.SetObserver(app.Metrics)
		defer detector.Stop()

		updates, err := detector.Start(ctx)
		if err != nil {
			return fail(cmd, app, err)
		}
		captured, err := tui.RunCamera(ctx, detector, updates, app.T)
		detector.Stop()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fail(cmd, app, err)
		}

		out := cmd.OutOrStdout()
		notifyInfo(out, app.T("camera.disconnected", nil))
		if len(captured) > 0 {
			notifySuccess(out, app.T("results.processed_ok", map[string]any{"count": len(captured)}))
			fmt.Fprintln(out, view.RenderSummary(app.View.Summary(), app.T))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cameraCmd)
}
