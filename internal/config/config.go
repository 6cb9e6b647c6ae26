package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"code-intelligence.com/lddr/internal/ldd"
	"code-intelligence.com/lddr/pkg/log"
	"code-intelligence.com/lddr/util/fileutil"
)

const (
	ConfigFileName = "lddr.yaml"
	EnvPrefix      = "LDDR"
)

// SetDefaults registers the default values of all configuration keys
// and enables LDDR_* environment variables, e.g. LDDR_MAX_DEPTH.
func SetDefaults() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("search-dirs", ldd.DefaultSearchDirs())
	viper.SetDefault("ld-so-conf", false)
	viper.SetDefault("max-depth", 0)
	viper.SetDefault("format", "text")
}

// FindAndParseConfig looks for an lddr.yaml in dir and its parent
// directories. If one is found, it's merged into the viper config.
// Afterwards all settings are unmarshalled into opts, which should use
// mapstructure tags matching the configuration keys.
func FindAndParseConfig(dir string, opts any) error {
	configFile, err := fileutil.SearchFileBackwards(dir, ConfigFileName)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err == nil {
		log.Debugf("Reading config file %s", fileutil.PrettifyPath(configFile))
		viper.SetConfigFile(configFile)
		err = viper.MergeInConfig()
		if err != nil {
			return errors.Wrapf(err, "failed to parse %s", configFile)
		}
	}

	err = viper.Unmarshal(opts)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}
