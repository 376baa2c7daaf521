package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var ErrNoTeam = errors.New("no team")

const (
	TeamCookie    = "badart_team"
	SessionCookie = "badart_session"
)

// Identity is who is making a request: a team and one browser session in
// it.
type Identity struct {
	Team    string
	Session string
}

type Resolver interface {
	Resolve(w http.ResponseWriter, r *http.Request) (Identity, error)
}

// CookieResolver reads the team from the "team" query parameter, falling
// back to a cookie, and hands out a random session id on first contact.
// Cookies are plain identifiers and are not signed.
type CookieResolver struct {
	Path string // cookie path, "/" when empty
}

func (c CookieResolver) Resolve(w http.ResponseWriter, r *http.Request) (Identity, error) {
	name := strings.TrimSpace(r.URL.Query().Get("team"))
	if name != "" {
		c.set(w, TeamCookie, name)
	} else if ck, err := r.Cookie(TeamCookie); err == nil {
		name = ck.Value
	}
	if name == "" {
		return Identity{}, ErrNoTeam
	}

	var id string
	if ck, err := r.Cookie(SessionCookie); err == nil && ck.Value != "" {
		id = ck.Value
	} else {
		id = uuid.NewString()
		c.set(w, SessionCookie, id)
	}
	return Identity{Team: name, Session: id}, nil
}

func (c CookieResolver) set(w http.ResponseWriter, name, value string) {
	path := c.Path
	if path == "" {
		path = "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
