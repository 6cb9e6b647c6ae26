package completion

import (
	"strings"

	"github.com/spf13/cobra"

	"code-intelligence.com/lddr/pkg/report"
)

// ValidOutputFormat can be used as a cobra flag completion function
// that completes the --format flag.
func ValidOutputFormat(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var formats []string
	for _, format := range report.ValidFormats {
		if strings.HasPrefix(format, toComplete) {
			formats = append(formats, format)
		}
	}
	return formats, cobra.ShellCompDirectiveNoFileComp
}
