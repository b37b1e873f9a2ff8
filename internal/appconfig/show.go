package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config, fallback Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		cfg = &fallback
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Backend URL:     %s\n", cfg.BaseURL())
	fmt.Fprintf(out, "  Language:        %s\n", cfg.Language)
	fmt.Fprintf(out, "  State Dir:       %s\n", cfg.StateDirPath())
	fmt.Fprintf(out, "  Charts Dir:      %s\n", cfg.ChartsDirPath())
	fmt.Fprintf(out, "  Export Dir:      %s\n", cfg.ExportDirPath())
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Camera Interval: %s\n", cfg.CameraInterval())
	if cfg.CameraSource != "" {
		fmt.Fprintf(out, "  Camera Source:   %s\n", cfg.CameraSource)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(out, "  Metrics Addr:    %s\n", cfg.MetricsAddr)
	}
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  JSON Mode:       %v\n", cfg.JSONMode)
}
