// Package config resolves cache settings with a two-tier lookup: a
// feature-scoped key {FEATURE}_CACHE_{KEY} wins over the shared CACHE_{KEY}.
//
// Values come from the process environment (a .env file is loaded first when
// present) and, optionally, from a config file whose keys use the same names.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/xhit/go-str2duration/v2"
)

// ErrMissing is wrapped by *Error when a required key has no value.
var ErrMissing = errors.New("missing value")

// Error names the setting that could not be resolved.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("config: %s: %v", e.Key, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type loadOptions struct {
	envFile    string
	configFile string
	v          *viper.Viper
}

type Option func(*loadOptions)

// WithEnvFile loads path instead of ".env". An empty path disables it.
func WithEnvFile(path string) Option { return func(o *loadOptions) { o.envFile = path } }

// WithConfigFile merges a config file (yaml, toml, json) under the env.
func WithConfigFile(path string) Option { return func(o *loadOptions) { o.configFile = path } }

// WithViper resolves from v instead of a fresh instance.
func WithViper(v *viper.Viper) Option { return func(o *loadOptions) { o.v = v } }

// Settings is the resolved view for one feature. Keys passed to its methods
// are the bare names ("TYPE", "REDIS_URL").
type Settings struct {
	v       *viper.Viper
	feature string
}

// Load builds Settings for feature. An empty feature reads only the shared tier.
func Load(feature string, opts ...Option) (*Settings, error) {
	o := loadOptions{envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}

	// .env only for local development
	if o.envFile != "" {
		if _, err := os.Stat(o.envFile); err == nil {
			if err := godotenv.Load(o.envFile); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", o.envFile, err)
			}
		}
	}

	v := o.v
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", o.configFile, err)
		}
	}
	return &Settings{v: v, feature: strings.ToUpper(feature)}, nil
}

func (s *Settings) Feature() string { return s.feature }

// names returns the keys tried for key, most specific first.
func (s *Settings) names(key string) []string {
	key = strings.ToUpper(key)
	if s.feature == "" {
		return []string{"CACHE_" + key}
	}
	return []string{s.feature + "_CACHE_" + key, "CACHE_" + key}
}

// Lookup returns the first tier that has key set.
func (s *Settings) Lookup(key string) (string, bool) {
	for _, n := range s.names(key) {
		if s.v.IsSet(n) {
			return s.v.GetString(n), true
		}
	}
	return "", false
}

func (s *Settings) missing(key string) error {
	return &Error{Key: s.names(key)[0], Err: ErrMissing}
}

// String returns key's value, def[0] when unset, or a missing error.
func (s *Settings) String(key string, def ...string) (string, error) {
	if v, ok := s.Lookup(key); ok {
		return v, nil
	}
	if len(def) > 0 {
		return def[0], nil
	}
	return "", s.missing(key)
}

func (s *Settings) Int(key string, def ...int) (int, error) {
	v, ok := s.Lookup(key)
	if !ok {
		if len(def) > 0 {
			return def[0], nil
		}
		return 0, s.missing(key)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, &Error{Key: s.names(key)[0], Err: err}
	}
	return n, nil
}

// Duration accepts Go durations extended with days and weeks ("1d", "2w3h").
// A bare integer is seconds.
func (s *Settings) Duration(key string, def ...time.Duration) (time.Duration, error) {
	v, ok := s.Lookup(key)
	if !ok {
		if len(def) > 0 {
			return def[0], nil
		}
		return 0, s.missing(key)
	}
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		return 0, &Error{Key: s.names(key)[0], Err: err}
	}
	return d, nil
}

// Strings splits a comma separated value, dropping blanks.
func (s *Settings) Strings(key string, def ...string) ([]string, error) {
	v, ok := s.Lookup(key)
	if !ok {
		if len(def) > 0 {
			return def, nil
		}
		return nil, s.missing(key)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, s.missing(key)
	}
	return out, nil
}
