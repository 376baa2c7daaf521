package httpapi

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"strings"

	"github.com/DoyleJ11/badart/internal/engine"
	"github.com/DoyleJ11/badart/internal/hub"
	"github.com/DoyleJ11/badart/internal/journal"
	"github.com/DoyleJ11/badart/internal/relay"
	"github.com/DoyleJ11/badart/internal/session"
	"github.com/DoyleJ11/badart/internal/team"
	"github.com/DoyleJ11/badart/internal/types"
	"go.uber.org/zap"
)

// maxBody caps request bodies; a guess is a few words.
const maxBody = 4 << 10

type Deps struct {
	Hub            *hub.Hub
	Relay          *relay.Relay
	Resolver       session.Resolver
	Journal        journal.Recorder // Nop when nil
	Logger         *zap.Logger      // Nop when nil
	AllowedOrigins []string
}

func (d *Deps) defaults() {
	if d.Journal == nil {
		d.Journal = journal.Nop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Resolver == nil {
		d.Resolver = session.CookieResolver{}
	}
}

// resolve finds the caller's team coordinator, answering the request
// itself on failure.
func resolve(d Deps, w http.ResponseWriter, r *http.Request) (session.Identity, *team.Coordinator, bool) {
	id, err := d.Resolver.Resolve(w, r)
	if err != nil {
		if errors.Is(err, session.ErrNoTeam) {
			writeError(w, http.StatusUnauthorized, "join a team first")
		} else {
			writeError(w, http.StatusInternalServerError, "session lookup failed")
		}
		return session.Identity{}, nil, false
	}
	return id, d.Hub.Ensure(id.Team), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func displayName(who string) string {
	who = strings.TrimSpace(who)
	if who == "" {
		return "anonymous"
	}
	return who
}

// SubmitAnswer echoes the guess to the team chat and tries it against the
// painting on display.
func SubmitAnswer(d Deps) http.HandlerFunc {
	d.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SubmitRequest
		if !decode(w, r, &req) {
			return
		}
		id, coord, ok := resolve(d, w, r)
		if !ok {
			return
		}

		canonical := engine.Canonicalize(req.Answer)
		who := displayName(req.Who)
		d.Logger.Info("answer submitted",
			zap.String("team", id.Team), zap.String("who", who), zap.String("answer", canonical))

		// chat text is rendered as HTML by the page
		coord.SendChat(html.EscapeString(who) + ` guessed "` + html.EscapeString(req.Answer) + `"`)
		solved := coord.SubmitAnswer(canonical)

		err := d.Journal.Record(r.Context(), journal.Guess{
			Team:      id.Team,
			Session:   id.Session,
			Who:       who,
			Raw:       req.Answer,
			Canonical: canonical,
			Solved:    solved,
		})
		if err != nil {
			d.Logger.Warn("journal guess", zap.String("team", id.Team), zap.Error(err))
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// RequestOpen is the operator override: it lets the team in whatever the
// player count.
func RequestOpen(d Deps) http.HandlerFunc {
	d.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		_, coord, ok := resolve(d, w, r)
		if !ok {
			return
		}
		coord.RequestOpen()
		w.WriteHeader(http.StatusNoContent)
	}
}

func SetName(d Deps) http.HandlerFunc {
	d.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.NameRequest
		if !decode(w, r, &req) {
			return
		}
		id, coord, ok := resolve(d, w, r)
		if !ok {
			return
		}
		coord.SetName(id.Session, html.EscapeString(displayName(req.Who)))
		w.WriteHeader(http.StatusNoContent)
	}
}

func Status(d Deps) http.HandlerFunc {
	d.defaults()
	return func(w http.ResponseWriter, r *http.Request) {
		_, coord, ok := resolve(d, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, coord.View())
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
