package relay

import (
	"context"

	"github.com/DoyleJ11/badart/pkg/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// OutboxSize is the buffer of each subscriber. A subscriber that falls this
// far behind is dropped.
const OutboxSize = 16

type Msg interface{ isRelayMsg() }

type Subscribe struct {
	Team     string
	ClientID string
	Outbox   chan types.Envelope
}

func (Subscribe) isRelayMsg() {}

type Unsubscribe struct {
	Team     string
	ClientID string
}

func (Unsubscribe) isRelayMsg() {}

type Publish struct {
	Team     string
	Messages []types.Directive
	Sticky   bool
}

func (Publish) isRelayMsg() {}

type GetStats struct {
	Team  string
	Reply chan Stats
}

func (GetStats) isRelayMsg() {}

// Stats reflects one team's channel without data races.
type Stats struct {
	Subscribers int
	Serial      int64
	Sticky      []types.Directive
}

type channel struct {
	clients map[string]chan types.Envelope
	serial  int64
	sticky  *types.Envelope // last sticky batch, replayed on subscribe
}

// Relay fans directive batches out to the subscribers of each team. All
// state is owned by a single loop goroutine.
type Relay struct {
	inbox  chan Msg
	done   chan struct{}
	teams  map[string]*channel
	clock  clockwork.Clock
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, clock clockwork.Clock, logger *zap.Logger) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	r := &Relay{
		inbox:  make(chan Msg, 64),
		done:   make(chan struct{}),
		teams:  make(map[string]*channel),
		clock:  clock,
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

// Broadcast queues a batch for every subscriber of team. A sticky batch
// also replaces what late subscribers are sent first.
func (r *Relay) Broadcast(team string, msgs []types.Directive, sticky bool) {
	r.send(Publish{Team: team, Messages: msgs, Sticky: sticky})
}

// Subscribe registers clientID on team. The returned channel is closed when
// the subscription ends: on leave, when the client is too slow, or on
// shutdown.
func (r *Relay) Subscribe(team, clientID string) (<-chan types.Envelope, func()) {
	out := make(chan types.Envelope, OutboxSize)
	r.send(Subscribe{Team: team, ClientID: clientID, Outbox: out})
	leave := func() { r.send(Unsubscribe{Team: team, ClientID: clientID}) }
	return out, leave
}

func (r *Relay) Stats(team string) Stats {
	reply := make(chan Stats, 1)
	r.send(GetStats{Team: team, Reply: reply})
	select {
	case s := <-reply:
		return s
	case <-r.ctx.Done():
		return Stats{}
	}
}

func (r *Relay) send(m Msg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Relay) team(name string) *channel {
	ch := r.teams[name]
	if ch == nil {
		ch = &channel{clients: make(map[string]chan types.Envelope)}
		r.teams[name] = ch
	}
	return ch
}

func (r *Relay) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Subscribe:
				ch := r.team(msg.Team)
				if old, ok := ch.clients[msg.ClientID]; ok {
					close(old)
				}
				ch.clients[msg.ClientID] = msg.Outbox
				if ch.sticky != nil {
					msg.Outbox <- *ch.sticky
				}

			case Unsubscribe:
				ch := r.team(msg.Team)
				if out, ok := ch.clients[msg.ClientID]; ok {
					close(out)
					delete(ch.clients, msg.ClientID)
				}

			case Publish:
				ch := r.team(msg.Team)
				ch.serial++
				env := types.Envelope{
					Serial:    ch.serial,
					Timestamp: types.UnixSeconds(r.clock.Now()),
					Messages:  msg.Messages,
				}
				if msg.Sticky {
					ch.sticky = &env
				}
				r.broadcast(msg.Team, ch, env)

			case GetStats:
				ch := r.team(msg.Team)
				s := Stats{Subscribers: len(ch.clients), Serial: ch.serial}
				if ch.sticky != nil {
					s.Sticky = ch.sticky.Messages
				}
				msg.Reply <- s
			}
		}
	}
}

func (r *Relay) broadcast(team string, ch *channel, env types.Envelope) {
	for id, out := range ch.clients {
		select {
		case out <- env:
		default:
			// slow or gone: drop them
			close(out)
			delete(ch.clients, id)
			r.log.Warn("dropped slow subscriber", zap.String("team", team), zap.String("client", id))
		}
	}
}

func (r *Relay) shutdown() {
	for _, ch := range r.teams {
		for id, out := range ch.clients {
			close(out)
			delete(ch.clients, id)
		}
	}
}

// Wait blocks until the loop has shut down. Cancel the parent context
// first.
func (r *Relay) Wait() { <-r.done }
