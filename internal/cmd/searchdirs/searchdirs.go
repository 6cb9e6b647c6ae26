package searchdirs

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"code-intelligence.com/lddr/internal/cmdutils"
	"code-intelligence.com/lddr/pkg/report"
)

func New() *cobra.Command {
	return newWithOptions(&cmdutils.ResolveOptions{})
}

func newWithOptions(opts *cmdutils.ResolveOptions) *cobra.Command {
	var bindFlags func()

	cmd := &cobra.Command{
		Use:   "search-dirs",
		Short: "Print the directories in which libraries are looked up",
		Long: `Print the directories in which libraries are looked up, in the
order in which they are searched.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			bindFlags()
			return cmdutils.ParseResolveOptions(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := opts.EffectiveSearchDirs()
			if err != nil {
				return err
			}

			format := opts.OutputFormat()
			if format != report.FormatText {
				if dirs == nil {
					dirs = []string{}
				}
				return report.Write(cmd.OutOrStdout(), format, dirs)
			}
			for _, dir := range dirs {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), dir)
				if err != nil {
					return errors.WithStack(err)
				}
			}
			return nil
		},
	}

	bindFlags = cmdutils.AddFlags(cmd,
		cmdutils.AddFormatFlag,
		cmdutils.AddSearchDirFlag,
		cmdutils.AddLdSoConfFlag,
	)

	return cmd
}
