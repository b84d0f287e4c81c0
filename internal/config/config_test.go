package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(parseFlags(t))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileEnvFlagPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
owner: from-file
data:
  db_path: file.db
sync:
  retry_base: 2s
  max_attempts: 9
import:
  strategy: skip
log:
  level: debug
`), 0o644))

	t.Setenv("FLASHDECK_SYNC__MAX_ATTEMPTS", "3")
	t.Setenv("FLASHDECK_LOG__FORMAT", "json")
	t.Setenv("FLASHDECK_DATA__DB_PATH", "env.db")

	cfg, err := Load(parseFlags(t, "--config", path, "--db", "flag.db"))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Owner)
	assert.Equal(t, "flag.db", cfg.Data.DBPath, "flags beat env")
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryBase)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts, "env beats file")
	assert.Equal(t, time.Minute, cfg.Sync.RetryMax, "untouched keys keep defaults")
	assert.Equal(t, "skip", cfg.Import.Strategy)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(parseFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.ErrorContains(t, err, "config: file")
}

func TestLoad_NilFlagSet(t *testing.T) {
	t.Setenv("FLASHDECK_OWNER", "alice")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Owner)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "empty owner", mutate: func(c *Config) { c.Owner = "" }, errMsg: "Config.Owner"},
		{name: "bad strategy", mutate: func(c *Config) { c.Import.Strategy = "merge" }, errMsg: "Config.Import.Strategy"},
		{name: "retry max below base", mutate: func(c *Config) { c.Sync.RetryMax = time.Millisecond }, errMsg: "Config.Sync.RetryMax"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, errMsg: "Config.Log.Level"},
		{name: "non postgres dsn", mutate: func(c *Config) { c.Remote.DSN = "mysql://x" }, errMsg: "Config.Remote.DSN"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.errMsg)
		})
	}

	cfg := Default()
	cfg.Remote.DSN = "postgres://user:pw@localhost:5432/flashdeck"
	assert.NoError(t, cfg.Validate())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "sync.retry_base", envKey("FLASHDECK_SYNC__RETRY_BASE"))
	assert.Equal(t, "owner", envKey("FLASHDECK_OWNER"))
}
