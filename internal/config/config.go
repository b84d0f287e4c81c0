// Package config loads flashdeck settings from defaults, a YAML file,
// FLASHDECK_ environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore, e.g. FLASHDECK_SYNC__RETRY_BASE=2s.
const EnvPrefix = "FLASHDECK_"

// DefaultPath is read when no config file is named explicitly. It may be absent.
const DefaultPath = "flashdeck.yaml"

// Config is the full application configuration.
type Config struct {
	Owner  string       `koanf:"owner" validate:"required"`
	Data   DataConfig   `koanf:"data"`
	Remote RemoteConfig `koanf:"remote"`
	Sync   SyncConfig   `koanf:"sync"`
	Import ImportConfig `koanf:"import"`
	Log    LogConfig    `koanf:"log"`
}

// DataConfig locates the local database.
type DataConfig struct {
	DBPath string `koanf:"db_path" validate:"required"`
}

// RemoteConfig points at the optional Postgres store.
type RemoteConfig struct {
	DSN string `koanf:"dsn" validate:"omitempty,startswith=postgres"`
}

// SyncConfig tunes the background sync queue.
type SyncConfig struct {
	RetryBase   time.Duration `koanf:"retry_base" validate:"gt=0"`
	RetryMax    time.Duration `koanf:"retry_max" validate:"gtefield=RetryBase"`
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=100"`
	OpTimeout   time.Duration `koanf:"op_timeout" validate:"gt=0"`
}

// ImportConfig holds import defaults.
type ImportConfig struct {
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	Strategy   string        `koanf:"strategy" validate:"oneof=skip rename replace"`
	ReposDir   string        `koanf:"repos_dir" validate:"required"`
	BundlePath string        `koanf:"bundle_path" validate:"required"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Owner: "local",
		Data:  DataConfig{DBPath: "flashdeck.db"},
		Sync: SyncConfig{
			RetryBase:   time.Second,
			RetryMax:    time.Minute,
			MaxAttempts: 5,
			OpTimeout:   10 * time.Second,
		},
		Import: ImportConfig{
			Timeout:    30 * time.Second,
			Strategy:   "rename",
			ReposDir:   "repos",
			BundlePath: "flashcards.json",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"owner":      "owner",
	"db":         "data.db_path",
	"remote":     "remote.dsn",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// RegisterFlags adds the global configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.StringP("config", "c", "", "path to a YAML config file (default "+DefaultPath+" when present)")
	fs.String("owner", def.Owner, "owner id the collection is stored under")
	fs.String("db", def.Data.DBPath, "path to the SQLite database file")
	fs.String("remote", "", "Postgres DSN of the remote store")
	fs.String("log-level", def.Log.Level, "log level: debug, info, warn or error")
	fs.String("log-format", def.Log.Format, "log format: text or json")
}

// Load builds the configuration. fs may be nil; otherwise it must have been
// parsed and only flags set explicitly override other sources.
func Load(fs *pflag.FlagSet) (Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	k := koanf.New(".")

	path, explicit := configPath(fs)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config: file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("config: read flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func configPath(fs *pflag.FlagSet) (string, bool) {
	if fs != nil {
		if p, err := fs.GetString("config"); err == nil && p != "" {
			return p, true
		}
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	return DefaultPath, false
}

// envKey turns FLASHDECK_SYNC__RETRY_BASE into sync.retry_base.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks field constraints and reports every violation.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q check", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
