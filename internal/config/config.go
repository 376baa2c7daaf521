package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrInvalid = errors.New("invalid config")

// EnvPrefix namespaces environment overrides, e.g. BADART_SERVER_ADDR for
// server.addr.
const EnvPrefix = "BADART"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Content ContentConfig `mapstructure:"content"`
	Logging LoggingConfig `mapstructure:"logging"`
	Journal JournalConfig `mapstructure:"journal"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type GameConfig struct {
	MinPlayers    int           `mapstructure:"min_players"`
	FrameDuration time.Duration `mapstructure:"frame_duration"`
	LastDuration  time.Duration `mapstructure:"last_duration"`
	InitialOpen   time.Duration `mapstructure:"initial_open"`
	Closure       time.Duration `mapstructure:"closure"`
}

type ContentConfig struct {
	// AssetsJSON is a JSON object mapping asset names to URLs.
	AssetsJSON string `mapstructure:"assets_json"`
	// CatalogFile is a YAML painting list; the built-in one when empty.
	CatalogFile string `mapstructure:"catalog_file"`
	ImageWidth  int    `mapstructure:"image_width"`
	AudioAsset  string `mapstructure:"audio_asset"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type JournalConfig struct {
	// DSN of the postgres guess journal. Disabled when empty.
	DSN string `mapstructure:"dsn"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Game: GameConfig{
			MinPlayers:    1,
			FrameDuration: 1500 * time.Millisecond,
			LastDuration:  4 * time.Second,
			InitialOpen:   10 * time.Minute,
			Closure:       30 * time.Minute,
		},
		Content: ContentConfig{
			AssetsJSON: "assets.json",
			ImageWidth: 800,
			AudioAsset: "tada.wav",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)

	v.SetDefault("game.min_players", d.Game.MinPlayers)
	v.SetDefault("game.frame_duration", d.Game.FrameDuration)
	v.SetDefault("game.last_duration", d.Game.LastDuration)
	v.SetDefault("game.initial_open", d.Game.InitialOpen)
	v.SetDefault("game.closure", d.Game.Closure)

	v.SetDefault("content.assets_json", d.Content.AssetsJSON)
	v.SetDefault("content.catalog_file", d.Content.CatalogFile)
	v.SetDefault("content.image_width", d.Content.ImageWidth)
	v.SetDefault("content.audio_asset", d.Content.AudioAsset)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)

	v.SetDefault("journal.dsn", d.Journal.DSN)
}

// Load unmarshals v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem at once, each wrapping ErrInvalid.
func (c *Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Server.Addr != "", "server.addr is empty")
	check(c.Game.MinPlayers >= 1, "game.min_players must be at least 1, got %d", c.Game.MinPlayers)
	for key, d := range map[string]time.Duration{
		"game.frame_duration": c.Game.FrameDuration,
		"game.last_duration":  c.Game.LastDuration,
		"game.initial_open":   c.Game.InitialOpen,
		"game.closure":        c.Game.Closure,
	} {
		check(d > 0, "%s must be positive, got %v", key, d)
	}
	check(c.Content.ImageWidth > 0, "content.image_width must be positive, got %d", c.Content.ImageWidth)

	if c.Content.AssetsJSON == "" {
		check(false, "content.assets_json is empty")
	} else if _, statErr := os.Stat(c.Content.AssetsJSON); statErr != nil {
		check(false, "content.assets_json: %v", statErr)
	}

	_, levelErr := zap.ParseAtomicLevel(c.Logging.Level)
	check(levelErr == nil, "logging.level %q is not a zap level", c.Logging.Level)

	return err
}
