package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from the given path (or the default search
// locations when path is empty), applies SCANFLEET_ environment overrides,
// and fills in defaults.
func LoadConfig(path string) (*viper.Viper, error) {
	v := viper.New()

	v.SetEnvPrefix("SCANFLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("scanfleet")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/scanfleet")
	if err := v.ReadInConfig(); err != nil {
		// Missing config is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("store.path", "scanfleet.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("plugins.fleet.enabled", true)
	v.SetDefault("plugins.fleet.poll_interval", "30s")
	v.SetDefault("plugins.scantask.enabled", true)
	v.SetDefault("plugins.scantask.poll_interval", "5s")
}
