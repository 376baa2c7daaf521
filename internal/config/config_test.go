package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func assetsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"01/a.png": "/a.png"}`), 0o644))
	return path
}

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.Set("content.assets_json", assetsFile(t))
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 1, cfg.Game.MinPlayers)
	assert.Equal(t, 1500*time.Millisecond, cfg.Game.FrameDuration)
	assert.Equal(t, 4*time.Second, cfg.Game.LastDuration)
	assert.Equal(t, 10*time.Minute, cfg.Game.InitialOpen)
	assert.Equal(t, 30*time.Minute, cfg.Game.Closure)
	assert.Equal(t, 800, cfg.Content.ImageWidth)
	assert.Equal(t, "tada.wav", cfg.Content.AudioAsset)
	assert.Empty(t, cfg.Journal.DSN)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	v := newViper(t)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
game:
  min_players: 4
  frame_duration: 2s
  closure: 1m
server:
  allowed_origins: ["https://puzzle.example"]
`)))

	t.Setenv("BADART_GAME_INITIAL_OPEN", "90s")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Game.MinPlayers)
	assert.Equal(t, 2*time.Second, cfg.Game.FrameDuration)
	assert.Equal(t, time.Minute, cfg.Game.Closure)
	assert.Equal(t, 90*time.Second, cfg.Game.InitialOpen)
	assert.Equal(t, []string{"https://puzzle.example"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		errs   int
	}{
		{name: "valid", mutate: func(c *Config) {}, errs: 0},
		{name: "zero players", mutate: func(c *Config) { c.Game.MinPlayers = 0 }, errs: 1},
		{name: "negative frame", mutate: func(c *Config) { c.Game.FrameDuration = -time.Second }, errs: 1},
		{name: "zero durations", mutate: func(c *Config) {
			c.Game.LastDuration = 0
			c.Game.Closure = 0
		}, errs: 2},
		{name: "missing assets", mutate: func(c *Config) { c.Content.AssetsJSON = "/does/not/exist.json" }, errs: 1},
		{name: "no assets", mutate: func(c *Config) { c.Content.AssetsJSON = "" }, errs: 1},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, errs: 1},
		{name: "no addr", mutate: func(c *Config) { c.Server.Addr = "" }, errs: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Content.AssetsJSON = assetsFile(t)
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.errs == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Len(t, multierr.Errors(err), tc.errs)
		})
	}
}
