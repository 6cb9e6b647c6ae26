package cmdutils

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ExecuteCommand runs the command with the given arguments and returns
// what it wrote to stdout. Viper is reset before and after so that flag
// bindings of previous runs don't leak into this one.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, in io.Reader, args ...string) (string, error) {
	t.Helper()

	verbose := viper.GetBool("verbose")
	viper.Reset()
	viper.Set("verbose", verbose)
	t.Cleanup(func() {
		viper.Reset()
		viper.Set("verbose", verbose)
	})

	out := &bytes.Buffer{}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return out.String(), err
}
