package main

import (
	"fmt"
	"os"

	"code-intelligence.com/lddr/internal/cmd/root"
	"code-intelligence.com/lddr/internal/cmdutils"
	"code-intelligence.com/lddr/pkg/log"
)

func main() {
	cmd := root.New()
	c, err := cmd.ExecuteC()
	if err == nil {
		return
	}

	switch {
	case cmdutils.IsSilentError(err):
		// Already logged
	case cmdutils.IsIncorrectUsageError(err):
		log.Error(err)
		_, _ = fmt.Fprintln(os.Stderr)
		_, _ = fmt.Fprint(os.Stderr, c.UsageString())
	default:
		log.Error(err)
	}
	os.Exit(1)
}
