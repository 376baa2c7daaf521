package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/DoyleJ11/badart/internal/config"
	"github.com/DoyleJ11/badart/internal/engine"
	"github.com/DoyleJ11/badart/internal/httpapi"
	"github.com/DoyleJ11/badart/internal/hub"
	"github.com/DoyleJ11/badart/internal/journal"
	"github.com/DoyleJ11/badart/internal/relay"
	"github.com/DoyleJ11/badart/internal/session"
	"github.com/DoyleJ11/badart/internal/team"
	"go.uber.org/zap"
)

// App is the wired server. Coordinators and the relay stop with the
// context given to Build.
type App struct {
	Catalog *engine.Catalog
	Hub     *hub.Hub
	Relay   *relay.Relay
	Journal journal.Recorder
	Handler http.Handler
}

func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	assets, err := engine.LoadAssets(cfg.Content.AssetsJSON)
	if err != nil {
		return nil, err
	}
	specs, err := engine.LoadPaintingSpecs(cfg.Content.CatalogFile)
	if err != nil {
		return nil, err
	}
	catalog, err := engine.BuildCatalog(specs, assets, cfg.Content.ImageWidth)
	if err != nil {
		return nil, err
	}
	audio, err := assets.URL(cfg.Content.AudioAsset)
	if err != nil {
		return nil, fmt.Errorf("solve audio: %w", err)
	}
	log.Info("catalog loaded", zap.Int("paintings", catalog.Len()))

	rec, err := journal.Open(cfg.Journal.DSN, log)
	if err != nil {
		return nil, err
	}

	settings := team.Settings{
		MinPlayers:    cfg.Game.MinPlayers,
		FrameDuration: cfg.Game.FrameDuration,
		LastDuration:  cfg.Game.LastDuration,
		InitialOpen:   cfg.Game.InitialOpen,
		Closure:       cfg.Game.Closure,
		AudioURL:      audio,
	}

	rl := relay.New(ctx, nil, log)
	h := hub.NewHub(ctx, func(ctx context.Context, name string) *team.Coordinator {
		log.Info("new team", zap.String("team", name))
		return team.New(ctx, name, team.Options{
			Catalog:     catalog,
			Broadcaster: rl,
			Settings:    settings,
			Logger:      log,
		})
	})

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:            h,
		Relay:          rl,
		Resolver:       session.CookieResolver{},
		Journal:        rec,
		Logger:         log,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return &App{Catalog: catalog, Hub: h, Relay: rl, Journal: rec, Handler: handler}, nil
}
