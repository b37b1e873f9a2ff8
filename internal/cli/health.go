package escombro

import (
	"fmt"
	"strings"

	"github.com/mwiater/escombro/internal/backend"
	"github.com/spf13/cobra"
)

// healthCmd implements 'health', which reports backend and model status.
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend and its model are up",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		client := backend.New(cfg)
		h, err := client.Health(cmd.Context())
		out := cmd.OutOrStdout()
		if err != nil {
			notifyError(cmd.ErrOrStderr(), fmt.Sprintf("%s: %v", cfg.BaseURL(), err))
			cmd.SilenceErrors = true
			return err
		}
		if JSONModeEnabled() {
			return printJSON(out, h)
		}
		fmt.Fprintf(out, "Backend:           %s\n", cfg.BaseURL())
		fmt.Fprintf(out, "Status:            %s\n", h.Status)
		fmt.Fprintf(out, "Model loaded:      %v\n", h.ModelLoaded)
		fmt.Fprintf(out, "Device:            %s\n", h.Device)
		fmt.Fprintf(out, "Supported formats: %s\n", strings.Join(h.SupportedFormats, ", "))
		if !h.ModelLoaded {
			notifyError(cmd.ErrOrStderr(), "model not loaded")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
