package tree

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"code-intelligence.com/lddr/internal/cmdutils"
	"code-intelligence.com/lddr/pkg/report"
)

type treeCmd struct {
	*cobra.Command
	opts *cmdutils.ResolveOptions
}

func New() *cobra.Command {
	return newWithOptions(&cmdutils.ResolveOptions{})
}

func newWithOptions(opts *cmdutils.ResolveOptions) *cobra.Command {
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "tree [flags] <binary>...",
		Short: "Print the full dependency tree of ELF binaries",
		Long: `Print the full tree of shared libraries required by ELF binaries,
followed by a summary.

Libraries required via multiple paths appear once per path. The
dynamic loader's dependency on libraries which in turn depend on the
loader is printed but not expanded again.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind viper keys to flags. We can't do this in the New
			// function, because that would re-bind viper keys which
			// were bound to the flags of other commands before.
			bindFlags()
			return cmdutils.ParseResolveOptions(opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			cmd := treeCmd{Command: c, opts: opts}
			return cmd.run(args)
		},
	}

	bindFlags = cmdutils.AddFlags(cmd,
		cmdutils.AddFormatFlag,
		cmdutils.AddResolveFlags,
	)

	return cmd
}

func (cmd *treeCmd) run(args []string) error {
	trees, err := cmdutils.AnalyzeAll(args, cmd.opts)
	if err != nil {
		return err
	}

	format := cmd.opts.OutputFormat()
	if format != report.FormatText {
		var results []*report.TreeResult
		for _, t := range trees {
			result, err := report.NewTreeResult(t)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return report.Write(cmd.OutOrStdout(), format, results)
	}

	for i, t := range trees {
		if i > 0 {
			_, err = fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return errors.WithStack(err)
			}
		}
		err = report.PrintTree(cmd.OutOrStdout(), t)
		if err != nil {
			return err
		}
		summary, err := report.Summarize(t)
		if err != nil {
			return err
		}
		err = summary.Print(cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}
	return nil
}
