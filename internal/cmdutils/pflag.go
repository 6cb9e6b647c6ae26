package cmdutils

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"code-intelligence.com/lddr/internal/completion"
	"code-intelligence.com/lddr/pkg/report"
)

func ViperMustBindPFlag(key string, flag *pflag.Flag) {
	err := viper.BindPFlag(key, flag)
	if err != nil {
		panic(err)
	}
}

// AddFlags executes the specified Add*Flag functions and returns a
// function which binds all those flags to viper
func AddFlags(cmd *cobra.Command, funcs ...func(cmd *cobra.Command) func()) (bindFlags func()) { // nolint:nonamedreturns
	var bindFlagFuncs []func()
	for _, f := range funcs {
		bindFlagFunc := f(cmd)
		bindFlagFuncs = append(bindFlagFuncs, bindFlagFunc)
	}
	return func() {
		for _, f := range bindFlagFuncs {
			f()
		}
	}
}

func AddFormatFlag(cmd *cobra.Command) func() {
	cmd.Flags().StringP("format", "f", "",
		"Output `format`, one of: "+strings.Join(report.ValidFormats, ", ")+".\n"+
			"The default is to print human readable text.")
	err := cmd.RegisterFlagCompletionFunc("format", completion.ValidOutputFormat)
	if err != nil {
		panic(err)
	}
	return func() {
		ViperMustBindPFlag("format", cmd.Flags().Lookup("format"))
	}
}

func AddSearchDirFlag(cmd *cobra.Command) func() {
	cmd.Flags().StringArrayP("search-dir", "L", nil,
		"A `directory` in which declared dependencies are looked up.\n"+
			"Directories are searched in the order in which they are specified\n"+
			"and replace the default list of system library directories.\n"+
			"This flag can be used multiple times.")
	return func() {
		ViperMustBindPFlag("search-dirs", cmd.Flags().Lookup("search-dir"))
	}
}

func AddLdSoConfFlag(cmd *cobra.Command) func() {
	cmd.Flags().Bool("ld-so-conf", false,
		"Also search the directories configured in /etc/ld.so.conf,\n"+
			"after the search directories.")
	return func() {
		ViperMustBindPFlag("ld-so-conf", cmd.Flags().Lookup("ld-so-conf"))
	}
}

func AddMaxDepthFlag(cmd *cobra.Command) func() {
	cmd.Flags().Int("max-depth", 0,
		"Don't expand dependencies deeper than this `depth`, counting the\n"+
			"analyzed binary as depth 1. The default is no limit.")
	return func() {
		ViperMustBindPFlag("max-depth", cmd.Flags().Lookup("max-depth"))
	}
}

// AddResolveFlags adds all flags which affect how dependencies are
// resolved.
func AddResolveFlags(cmd *cobra.Command) func() {
	return AddFlags(cmd,
		AddSearchDirFlag,
		AddLdSoConfFlag,
		AddMaxDepthFlag,
	)
}
