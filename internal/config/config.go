// Package config wraps viper behind the plugin.Config interface so modules
// receive a read-only, nil-safe view of their configuration subtree.
package config

import (
	"time"

	"github.com/HerbHall/scanfleet/pkg/plugin"
	"github.com/spf13/viper"
)

// Compile-time interface guard.
var _ plugin.Config = (*Config)(nil)

// Config adapts a *viper.Viper to plugin.Config. A nil viper yields zero
// values for every lookup instead of panicking.
type Config struct {
	v *viper.Viper
}

// New wraps the given viper instance. v may be nil.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

func (c *Config) GetStringSlice(key string) []string {
	if c.v == nil {
		return nil
	}
	return c.v.GetStringSlice(key)
}

func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the configuration subtree rooted at key. A missing subtree
// returns an empty Config, never nil.
func (c *Config) Sub(key string) plugin.Config {
	if c.v == nil {
		return New(nil)
	}
	return New(c.v.Sub(key))
}

func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}
