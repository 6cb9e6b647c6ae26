package log

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	AnalysisInProgressMsg        string = "Analysis in progress..."
	AnalysisInProgressSuccessMsg string = "Analysis in progress... Done."
	AnalysisInProgressErrorMsg   string = "Analysis in progress... Error."
)

func GetPtermErrorStyle() *pterm.Style {
	return &pterm.Style{pterm.FgRed, pterm.Bold}
}

func GetPtermSuccessStyle() *pterm.Style {
	return &pterm.Style{pterm.FgGreen}
}

// Set this, so it can be checked and used in the logging process
// to ensure correct output
var currentProgressSpinner *pterm.SpinnerPrinter

// ShouldShowSpinner returns true if a progress spinner can be drawn,
// which is the case if stderr is a terminal and no verbose output is
// interleaved with it.
func ShouldShowSpinner() bool {
	if viper.GetBool("verbose") {
		return false
	}
	return Output == os.Stderr && term.IsTerminal(int(os.Stderr.Fd()))
}

func CreateCurrentProgressSpinner(style *pterm.Style, msg string) {
	// error can be ignored here since pterm doesn't return one
	currentProgressSpinner, _ = pterm.DefaultSpinner.Start(msg)
	if style != nil {
		currentProgressSpinner.Style = style
		currentProgressSpinner.MessageStyle = style
	}
}

func StopCurrentProgressSpinner(style *pterm.Style, msg string) {
	if currentProgressSpinner == nil {
		return
	}
	if style != nil {
		currentProgressSpinner.Style = style
		currentProgressSpinner.MessageStyle = style
	}

	if msg != "" {
		currentProgressSpinner.UpdateText(msg)
	}

	// error can be ignored here since pterm doesn't return one
	currentProgressSpinner.RemoveWhenDone = false
	_ = currentProgressSpinner.Stop()
	currentProgressSpinner = nil
}
