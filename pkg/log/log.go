package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/pterm/pterm"
	"github.com/spf13/viper"
)

// Output is the writer all log functions write to. Tests replace it to
// capture the output.
var Output io.Writer = os.Stderr

// Dependencies of multiple binaries are resolved concurrently
var outputMutex sync.Mutex

// DisableColor turns off all styling, both of pterm and of gookit/color
// which is used for inline highlighting.
func DisableColor() {
	pterm.DisableStyling()
	color.Disable()
}

func log(style *pterm.Style, icon string, a ...any) {
	s := icon + fmt.Sprint(a...)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if style != nil {
		s = style.Sprint(s)
	}

	// The spinner redraws its line continuously, so clear it before
	// printing a message to avoid mixing both.
	if currentProgressSpinner != nil {
		s = "\r\033[K" + s
	}

	outputMutex.Lock()
	defer outputMutex.Unlock()
	_, _ = fmt.Fprint(Output, s)
}

// Successf highlights a message as successful
func Successf(format string, a ...any) {
	Success(fmt.Sprintf(format, a...))
}

func Success(a ...any) {
	log(&pterm.Style{pterm.FgGreen}, "✅ ", a...)
}

// Warnf highlights a message as a warning
func Warnf(format string, a ...any) {
	Warn(fmt.Sprintf(format, a...))
}

func Warn(a ...any) {
	log(&pterm.Style{pterm.Bold, pterm.FgYellow}, "⚠️ ", a...)
}

// Notef highlights a message as a note
func Notef(format string, a ...any) {
	Note(fmt.Sprintf(format, a...))
}

func Note(a ...any) {
	log(&pterm.Style{pterm.Bold}, "", a...)
}

// Errorf highlights a message as an error and shows the stack strace if
// the --verbose flag is active
func Errorf(err error, format string, a ...any) {
	Error(err, fmt.Sprintf(format, a...))
}

// Error highlights a message as an error and shows the stack strace if
// the --verbose flag is active. If no message is given, the error
// message itself is printed.
func Error(err error, a ...any) {
	if len(a) == 0 {
		a = []any{err.Error()}
	}
	log(&pterm.Style{pterm.Bold, pterm.FgRed}, "❌ ", a...)
	if viper.GetBool("verbose") && err != nil {
		Debugf("%+v", err)
	}
}

// Infof outputs a regular user message without any highlighting
func Infof(format string, a ...any) {
	Info(fmt.Sprintf(format, a...))
}

func Info(a ...any) {
	log(nil, "", a...)
}

// Debugf outputs additional information when the --verbose flag is
// active
func Debugf(format string, a ...any) {
	Debug(fmt.Sprintf(format, a...))
}

func Debug(a ...any) {
	if viper.GetBool("verbose") {
		log(&pterm.Style{pterm.Fuzzy}, "🔍 ", a...)
	}
}

// Print outputs a message without any highlighting or icon
func Print(a ...any) {
	log(nil, "", a...)
}

func Printf(format string, a ...any) {
	Print(fmt.Sprintf(format, a...))
}
