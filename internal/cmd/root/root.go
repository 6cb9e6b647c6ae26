package root

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"code-intelligence.com/lddr/internal/cmd/searchdirs"
	"code-intelligence.com/lddr/internal/cmd/tree"
	"code-intelligence.com/lddr/internal/cmdutils"
	"code-intelligence.com/lddr/pkg/log"
	"code-intelligence.com/lddr/pkg/report"
)

type rootCmd struct {
	*cobra.Command
	opts *cmdutils.ResolveOptions
}

func New() *cobra.Command {
	return newWithOptions(&cmdutils.ResolveOptions{})
}

func newWithOptions(opts *cmdutils.ResolveOptions) *cobra.Command {
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "lddr [flags] <binary>...",
		Short: "Print the shared libraries required by ELF binaries",
		Long: `Print the shared libraries required by ELF binaries, without
running the dynamic loader.

The libraries declared by each binary are looked up in the search
directories, and the libraries that were found are analyzed
recursively. For each binary, the directly required libraries are
printed together with the path they were found at. Use "lddr tree" to
see all transitive dependencies.

LD_LIBRARY_PATH and the RPATH/RUNPATH entries of the binaries are not
taken into account.`,
		Example: `  lddr /usr/bin/curl
  lddr -L /opt/sysroot/lib -L /opt/sysroot/usr/lib ./server
  lddr --format=json ./server`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmdutils.ViperMustBindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose"))
			cmdutils.ViperMustBindPFlag("no-color", cmd.Root().PersistentFlags().Lookup("no-color"))
			if viper.GetBool("no-color") {
				log.DisableColor()
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind viper keys to flags. We can't do this in the New
			// function, because that would re-bind viper keys which
			// were bound to the flags of other commands before.
			bindFlags()
			return cmdutils.ParseResolveOptions(opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			if len(args) == 0 {
				return c.Help()
			}
			cmd := rootCmd{Command: c, opts: opts}
			return cmd.run(args)
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Show more verbose output, e.g. how each library was resolved.")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output.")
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return cmdutils.WrapIncorrectUsageError(err)
	})

	// Note: If a flag should be configurable via viper as well (i.e.
	//       via lddr.yaml and LDDR_* environment variables), bind
	//       it to viper in the PreRun function.
	bindFlags = cmdutils.AddFlags(cmd,
		cmdutils.AddFormatFlag,
		cmdutils.AddResolveFlags,
	)

	cmd.AddCommand(tree.New())
	cmd.AddCommand(searchdirs.New())

	return cmd
}

func (cmd *rootCmd) run(args []string) error {
	trees, err := cmdutils.AnalyzeAll(args, cmd.opts)
	if err != nil {
		return err
	}

	format := cmd.opts.OutputFormat()
	if format != report.FormatText {
		var lists []*report.List
		for _, t := range trees {
			l, err := report.NewList(t)
			if err != nil {
				return err
			}
			lists = append(lists, l)
		}
		return report.Write(cmd.OutOrStdout(), format, lists)
	}

	// Like ldd, only print the name of the binary if there are multiple
	indent := ""
	if len(trees) > 1 {
		indent = "\t"
	}
	for i, t := range trees {
		if len(trees) > 1 {
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", args[i])
			if err != nil {
				return errors.WithStack(err)
			}
		}
		err = report.PrintList(cmd.OutOrStdout(), t, indent)
		if err != nil {
			return err
		}
	}
	return nil
}
