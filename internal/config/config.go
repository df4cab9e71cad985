// Package config loads the server configuration from a file with environment
// overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "nethz"

// Load reads the file into config, which must be a pointer to a struct.
// Values already set on the struct act as defaults. Environment variables
// prefixed with NETHZ_ override both file and defaults; nested keys join with
// underscores, e.g. NETHZ_HTTP_PORT for the http.port key.
func Load(file string, config any) error {
	v := viper.New()

	// Registering the struct's current values as a config map also teaches
	// viper the full key set, so env overrides apply during Unmarshal.
	defaults := make(map[string]any)
	if err := mapstructure.Decode(config, &defaults); err != nil {
		return fmt.Errorf("config: decode defaults: %v", err)
	}
	if err := v.MergeConfigMap(defaults); err != nil {
		return fmt.Errorf("config: merge defaults: %v", err)
	}

	v.SetConfigFile(file)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %v", file, err)
	}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("config: unmarshal: %v", err)
	}

	return nil
}
