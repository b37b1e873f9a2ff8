package escombro

import (
	"errors"
	"fmt"

	"github.com/mwiater/escombro/internal/tui"
	"github.com/mwiater/escombro/internal/view"
	"github.com/spf13/cobra"
)

var (
	statsNoTUI bool
	statsDump  bool
	statsPDF   string
)

// statsCmd implements 'stats', which opens the session statistics panel.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session statistics and draw the charts",
	Long:  `Show the processed count, mean confidence and most common material, write the class distribution and confidence histogram as PNG files, and display both as terminal bars.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		snapshot := app.Store.Snapshot()
		if statsDump {
			debugDump(cmd, snapshot)
		}
		out := cmd.OutOrStdout()
		panel, err := app.View.OpenPanel(snapshot)
		if errors.Is(err, view.ErrNoData) {
			notifyInfo(out, app.T("stats.no_data_notice", nil))
			return nil
		}
		if err != nil {
			return fail(cmd, app, err)
		}

		if statsPDF != "" {
			if err := view.WriteReport(statsPDF, panel, app.T); err != nil {
				return fail(cmd, app, err)
			}
			notifySuccess(out, statsPDF)
		}

		if JSONModeEnabled() {
			return printJSON(out, map[string]any{
				"summary":      panel.Summary,
				"distribution": panel.Distribution,
				"histogram":    panel.Histogram,
				"charts":       panel.Charts,
			})
		}
		if statsNoTUI {
			fmt.Fprintln(out, view.RenderPanel(panel, app.T))
			return nil
		}
		reopen := func() (view.Panel, error) { return app.View.OpenPanel(app.Store.Snapshot()) }
		return tui.RunStats(panel, reopen, app.T)
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsNoTUI, "no-tui", false, "print the panel instead of opening the interactive view")
	statsCmd.Flags().BoolVar(&statsDump, "dump", false, "pretty-print the raw aggregate (with --debug)")
	statsCmd.Flags().StringVar(&statsPDF, "pdf", "", "also write the panel as a PDF report to this path")
	rootCmd.AddCommand(statsCmd)
}
