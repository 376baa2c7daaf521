package httpapi

import (
	"net/http"
	"net/url"

	"github.com/DoyleJ11/badart/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

func SetupRoutes(d Deps) http.Handler {
	d.defaults()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins:   d.AllowedOrigins,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/artwait", ws.Handler(d.Hub, d.Relay, d.Resolver, ws.Options{
		OriginPatterns: originPatterns(d.AllowedOrigins),
		Logger:         d.Logger,
	}))
	r.Post("/artsubmit", SubmitAnswer(d))
	r.Post("/artname", SetName(d))
	r.Get("/artstatus", Status(d))

	open := RequestOpen(d)
	r.Get("/artopen", open)
	r.Post("/artopen", open)
	return r
}

// originPatterns turns CORS origins ("https://host:port") into the host
// patterns the websocket accept check wants.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			out = append(out, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			out = append(out, o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
