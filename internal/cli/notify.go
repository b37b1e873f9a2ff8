package escombro

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mwiater/escombro/internal/view"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgBlue)
)

// noticeWidth is where long localized notifications wrap.
const noticeWidth = 80

func notifySuccess(out io.Writer, msg string) {
	successColor.Fprintln(out, view.RenderNotice("✅ ", msg, noticeWidth))
}

func notifyError(out io.Writer, msg string) {
	errorColor.Fprintln(out, view.RenderNotice("❌ ", msg, noticeWidth))
}

func notifyInfo(out io.Writer, msg string) {
	infoColor.Fprintln(out, view.RenderNotice("ℹ️  ", msg, noticeWidth))
}

// printJSON writes v indented, for --jsonMode.
func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
