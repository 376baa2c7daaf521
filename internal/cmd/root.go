package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DoyleJ11/badart/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Execute runs the root command.
func Execute() error {
	return NewRootCmd(viper.New()).Execute()
}

func NewRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "badart",
		Short:         "Serve the Bad Art gallery puzzle",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log, err := NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := Serve(ctx, cfg, log); err != nil {
				log.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}

	f := root.PersistentFlags()
	f.StringP("config", "c", "", "config file (yaml)")
	f.String("addr", "", "listen address")
	f.String("assets-json", "", "JSON file mapping asset names to URLs")
	f.String("catalog", "", "YAML painting list (built-in list when empty)")
	f.Int("min-players", 0, "players needed before the gallery may open")
	f.Duration("frame-duration", 0, "time each non-final image is shown")
	f.Duration("last-duration", 0, "time each final image is shown")
	f.Duration("initial-open", 0, "how long the gallery stays open before closing")
	f.Duration("closure", 0, "how long the gallery stays closed")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("journal-dsn", "", "postgres DSN for the guess journal")

	for key, flag := range map[string]string{
		"config":               "config",
		"server.addr":          "addr",
		"content.assets_json":  "assets-json",
		"content.catalog_file": "catalog",
		"game.min_players":     "min-players",
		"game.frame_duration":  "frame-duration",
		"game.last_duration":   "last-duration",
		"game.initial_open":    "initial-open",
		"game.closure":         "closure",
		"logging.level":        "log-level",
		"journal.dsn":          "journal-dsn",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return root
}

func initConfig(v *viper.Viper) error {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	config.SetDefaults(v)

	v.SetEnvPrefix(config.EnvPrefix)
	// BADART_GAME_MIN_PLAYERS for game.min_players
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName("badart")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging level: %w", err)
	}
	zc.Level = level
	return zc.Build()
}

// Serve runs the HTTP server until ctx is cancelled, then drains it.
func Serve(ctx context.Context, cfg *config.Config, log *zap.Logger) (err error) {
	appCtx, cancelApp := context.WithCancel(ctx)
	app, err := Build(appCtx, cfg, log)
	if err != nil {
		cancelApp()
		return err
	}
	defer func() {
		cancelApp()
		app.Hub.Wait()
		app.Relay.Wait()
		err = multierr.Append(err, app.Journal.Close())
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
