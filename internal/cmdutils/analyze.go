package cmdutils

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"code-intelligence.com/lddr/internal/config"
	"code-intelligence.com/lddr/internal/ldd"
	"code-intelligence.com/lddr/pkg/log"
	"code-intelligence.com/lddr/pkg/report"
)

// LdSoConfPath is the ld.so.conf file read if --ld-so-conf is set
var LdSoConfPath = ldd.DefaultLdSoConf

// ResolveOptions are the options of all commands which resolve
// dependencies. The mapstructure tags match the viper keys of the flags
// added by AddResolveFlags and AddFormatFlag.
type ResolveOptions struct {
	SearchDirs []string `mapstructure:"search-dirs"`
	LdSoConf   bool     `mapstructure:"ld-so-conf"`
	MaxDepth   int      `mapstructure:"max-depth"`
	Format     string   `mapstructure:"format"`
}

// ParseResolveOptions reads the flags bound to viper, the LDDR_*
// environment variables and the lddr.yaml config file into opts.
func ParseResolveOptions(opts *ResolveOptions) error {
	config.SetDefaults()

	cwd, err := os.Getwd()
	if err != nil {
		return errors.WithStack(err)
	}
	err = config.FindAndParseConfig(cwd, opts)
	if err != nil {
		log.Errorf(err, "Failed to parse %s: %v", config.ConfigFileName, err.Error())
		return WrapSilentError(err)
	}
	return opts.Validate()
}

func (opts *ResolveOptions) Validate() error {
	if opts.MaxDepth < 0 {
		return WrapIncorrectUsageError(errors.Errorf("invalid max depth %d, must not be negative", opts.MaxDepth))
	}
	if opts.Format != "" {
		valid := false
		for _, format := range report.ValidFormats {
			if opts.Format == format {
				valid = true
				break
			}
		}
		if !valid {
			return WrapIncorrectUsageError(errors.Errorf("invalid output format %q", opts.Format))
		}
	}
	return nil
}

// OutputFormat returns the selected format, defaulting to text.
func (opts *ResolveOptions) OutputFormat() report.Format {
	if opts.Format == "" {
		return report.FormatText
	}
	return report.Format(opts.Format)
}

// EffectiveSearchDirs returns the search directories followed by the
// ones configured in ld.so.conf if that's enabled.
func (opts *ResolveOptions) EffectiveSearchDirs() ([]string, error) {
	if !opts.LdSoConf {
		return opts.SearchDirs, nil
	}
	return ldd.SearchDirsWithLdSoConf(opts.SearchDirs, LdSoConfPath)
}

// AnalyzeAll resolves the dependencies of all binaries. The binaries are
// analyzed concurrently, the trees are returned in the order of paths.
// If any analysis fails, no trees are returned.
func AnalyzeAll(paths []string, opts *ResolveOptions) ([]*ldd.DependencyTree, error) {
	searchDirs, err := opts.EffectiveSearchDirs()
	if err != nil {
		return nil, err
	}
	log.Debugf("Search directories: %v", searchDirs)

	if log.ShouldShowSpinner() {
		log.CreateCurrentProgressSpinner(nil, log.AnalysisInProgressMsg)
	}

	trees := make([]*ldd.DependencyTree, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			analyzer := ldd.NewAnalyzer(&ldd.Options{
				SearchDirs: searchDirs,
				MaxDepth:   opts.MaxDepth,
			})
			tree, err := analyzer.Analyze(path)
			if err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		log.StopCurrentProgressSpinner(log.GetPtermErrorStyle(), log.AnalysisInProgressErrorMsg)
		return nil, err
	}
	log.StopCurrentProgressSpinner(log.GetPtermSuccessStyle(), log.AnalysisInProgressSuccessMsg)
	return trees, nil
}
