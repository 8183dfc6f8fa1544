package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "FARMADMIN"
	configBaseName = "farmadmin"
)

// InitViper points viper at configFile, or at the first farmadmin.yaml/.yml found in
// the working directory or $HOME/.farmadmin, and enables FARMADMIN_ prefixed
// environment overrides. A missing config file is not an error.
func InitViper(configFile string) error {
	if configFile == "" {
		configFile = findConfigFile()
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if configFile == "" {
		return nil
	}

	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "[InitViper] failed to read config file %s", configFile)
	}
	return nil
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	for _, dir := range []string{".", filepath.Join(home, ".farmadmin")} {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, configBaseName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
