package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/badart/internal/hub"
	"github.com/DoyleJ11/badart/internal/relay"
	"github.com/DoyleJ11/badart/internal/session"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Options struct {
	// OriginPatterns are host patterns allowed to open the socket from
	// another origin. Same-origin is always allowed.
	OriginPatterns []string
	Logger         *zap.Logger
}

// Handler parks the caller in its team's gallery: it subscribes the
// connection to the team's broadcasts (the last sticky batch arrives
// first), joins the session to the coordinator, then streams envelopes
// until either side goes away.
func Handler(h *hub.Hub, rl *relay.Relay, resolver session.Resolver, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id, err := resolver.Resolve(w, r)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, session.ErrNoTeam) {
				status = http.StatusUnauthorized
			}
			http.Error(w, err.Error(), status)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// one subscription per connection; a session may have several tabs
		connID := uuid.NewString()
		out, leave := rl.Subscribe(id.Team, connID)
		defer leave()

		coord := h.Ensure(id.Team)
		coord.JoinWait(id.Session)

		connLog := log.With(zap.String("team", id.Team), zap.String("session", id.Session))
		connLog.Debug("waiting")

		// Reader: the page sends nothing we act on, but reading is what
		// notices a close from the client.
		ctx := conn.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-out:
				if !ok {
					// dropped by the relay or shutting down
					conn.Close(websocket.StatusTryAgainLater, "too slow")
					return
				}
				payload, err := json.Marshal(env)
				if err != nil {
					connLog.Error("marshal envelope", zap.Error(err))
					return
				}
				if err := write(ctx, conn, payload); err != nil {
					connLog.Debug("write failed", zap.Error(err))
					return
				}
			}
		}
	}
}

func write(parent context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
