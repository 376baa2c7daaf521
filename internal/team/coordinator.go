package team

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DoyleJ11/badart/internal/engine"
	"github.com/DoyleJ11/badart/pkg/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Broadcaster delivers directive batches to every session of a team.
// Sticky batches are replayed to sessions that connect later.
type Broadcaster interface {
	Broadcast(team string, msgs []types.Directive, sticky bool)
}

// Phase is the stage of a team's gallery. It only moves forward.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseInitialOpen Phase = "initial_open"
	PhaseClosed      Phase = "closed"
	PhaseReopened    Phase = "reopened"
)

// Settings are the timings and thresholds of one team's game.
type Settings struct {
	MinPlayers    int
	FrameDuration time.Duration
	LastDuration  time.Duration
	InitialOpen   time.Duration
	Closure       time.Duration
	AudioURL      string // played with the reveal of a solved painting
}

func DefaultSettings() Settings {
	return Settings{
		MinPlayers:    1,
		FrameDuration: 1500 * time.Millisecond,
		LastDuration:  4 * time.Second,
		InitialOpen:   10 * time.Minute,
		Closure:       30 * time.Minute,
	}
}

// Options are what New needs to build a coordinator.
type Options struct {
	Catalog     *engine.Catalog
	Broadcaster Broadcaster
	Settings    Settings
	Clock       clockwork.Clock // real clock when nil
	Logger      *zap.Logger     // no-op when nil
}

// View is a consistent copy of a team's state.
type View struct {
	Team          string   `json:"team"`
	Phase         Phase    `json:"phase"`
	Running       bool     `json:"running"`
	OpenRequested bool     `json:"open_requested"`
	Sessions      int      `json:"sessions"`
	Current       string   `json:"current,omitempty"`
	Solved        []string `json:"solved"`
}

// Coordinator owns one team's game. Every read or write of the fields
// below mu happens with mu held. wake is the condition: a one-slot
// channel the progression loop selects on, so a wait can tell a signal
// from its own timeout.
type Coordinator struct {
	team     string
	catalog  *engine.Catalog
	out      Broadcaster
	settings Settings
	clock    clockwork.Clock
	log      *zap.Logger
	ctx      context.Context

	wake chan struct{}
	done chan struct{} // closed when run returns

	mu            sync.Mutex
	sessions      map[string]struct{}
	names         map[string]string
	named         []string // sessions in the order they first set a name
	running       bool
	openRequested bool
	phase         Phase
	current       int // index into catalog, -1 before the gallery opens
	solved        []bool
}

// New creates the coordinator for team. The progression loop is not
// started until the first JoinWait; it stops when parent is cancelled.
func New(parent context.Context, team string, opts Options) *Coordinator {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		team:     team,
		catalog:  opts.Catalog,
		out:      opts.Broadcaster,
		settings: opts.Settings,
		clock:    clock,
		log:      logger.With(zap.String("team", team)),
		ctx:      parent,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		sessions: make(map[string]struct{}),
		names:    make(map[string]string),
		phase:    PhaseLobby,
		current:  -1,
		solved:   make([]bool, opts.Catalog.Len()),
	}
}

func (c *Coordinator) Team() string { return c.team }

// signal must be called with mu held.
func (c *Coordinator) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// drain discards a pending signal. Must be called with mu held, right
// where the loop observes state, so a later signal always means "changed
// since you looked".
func (c *Coordinator) drain() {
	select {
	case <-c.wake:
	default:
	}
}

// JoinWait parks session in the lobby and starts the progression loop on
// the team's first join.
func (c *Coordinator) JoinWait(session string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[session]; !ok {
		c.sessions[session] = struct{}{}
		c.signal()
	}

	if !c.running {
		c.running = true
		go c.run()
	}
}

// SubmitAnswer solves the painting on display if canonical is one of its
// answers. It reports whether this call solved it; wrong, late and
// duplicate answers are ignored.
func (c *Coordinator) SubmitAnswer(canonical string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current < 0 || c.solved[c.current] {
		return false
	}
	p := c.catalog.Paintings[c.current]
	if !p.Accepts(canonical) {
		return false
	}

	c.solved[c.current] = true
	c.signal()
	c.log.Info("painting solved", zap.String("title", p.Title))
	return true
}

// RequestOpen lets the team into the gallery regardless of player count.
func (c *Coordinator) RequestOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.openRequested {
		c.log.Info("open requested")
	}
	c.openRequested = true
	c.signal()
}

// SendChat echoes text to everyone on the team. It does not touch game
// state.
func (c *Coordinator) SendChat(text string) {
	c.out.Broadcast(c.team, []types.Directive{types.AddChat(text)}, false)
}

// SetName records the display name of session and tells the team who is
// playing.
func (c *Coordinator) SetName(session, name string) {
	c.mu.Lock()
	if _, ok := c.names[session]; !ok {
		c.named = append(c.named, session)
	}
	c.names[session] = name
	var names []string
	for _, s := range c.named {
		if n := c.names[s]; n != "" {
			names = append(names, n)
		}
	}
	c.mu.Unlock()

	c.out.Broadcast(c.team, []types.Directive{types.Players(strings.Join(names, ", "))}, false)
}

func (c *Coordinator) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Team:          c.team,
		Phase:         c.phase,
		Running:       c.running,
		OpenRequested: c.openRequested,
		Sessions:      len(c.sessions),
		Solved:        []string{},
	}
	if c.current >= 0 {
		v.Current = c.catalog.Paintings[c.current].Title
	}
	for i, ok := range c.solved {
		if ok {
			v.Solved = append(v.Solved, c.catalog.Paintings[i].Title)
		}
	}
	return v
}

// Done is closed once the progression loop has exited. It stays open for
// a coordinator whose loop never started.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Wait blocks until the progression loop has exited, or returns at once if
// it never started. Cancel the parent context first.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	started := c.running
	c.mu.Unlock()
	if started {
		<-c.done
	}
}

func (c *Coordinator) run() {
	defer close(c.done)
	c.log.Info("progression loop started")
	if err := c.progress(c.ctx); err != nil {
		c.log.Info("progression loop stopped", zap.Error(err))
	}
}

// gallery is the loop's own state; only the loop goroutine touches it.
type gallery struct {
	closeAt    time.Time // zero once the gallery has closed
	reopenAt   time.Time
	justSolved bool
}

func (c *Coordinator) progress(ctx context.Context) error {
	if err := c.waitForOpen(ctx); err != nil {
		return err
	}

	now := c.clock.Now()
	g := &gallery{
		closeAt:  now.Add(c.settings.InitialOpen),
		reopenAt: now.Add(c.settings.InitialOpen + c.settings.Closure),
	}
	c.setPhase(PhaseInitialOpen)
	c.log.Info("gallery open", zap.Time("close_at", g.closeAt))

	for {
		for i := range c.catalog.Paintings {
			if err := c.showPainting(ctx, g, i); err != nil {
				return err
			}
		}
	}
}

func (c *Coordinator) waitForOpen(ctx context.Context) error {
	for {
		c.mu.Lock()
		c.drain()
		if c.openRequested {
			c.mu.Unlock()
			return nil
		}
		count := len(c.sessions)
		c.mu.Unlock()

		c.out.Broadcast(c.team, []types.Directive{c.lobbyStatus(count)}, true)

		select {
		case <-c.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Coordinator) lobbyStatus(count int) types.Directive {
	verb := "s are"
	if count == 1 {
		verb = " is"
	}
	text := fmt.Sprintf("%d player%s currently waiting.<br>You can enter the gallery when there are %d.",
		count, verb, c.settings.MinPlayers)

	if count < c.settings.MinPlayers {
		return types.ShowMessage(text)
	}
	return types.PromptOpen(text)
}

// showPainting cycles painting idx's frames. A solve during the sequence
// restarts it with only the final frame, titled and preceded by the
// audio cue.
func (c *Coordinator) showPainting(ctx context.Context, g *gallery, idx int) error {
	p := c.catalog.Paintings[idx]

	c.mu.Lock()
	c.current = idx
	shownSolved := c.solved[idx]
	c.mu.Unlock()

	for {
		frames := p.Images
		if shownSolved {
			frames = []engine.Image{p.FinalImage()}
		}

		restart := false
		for _, im := range frames {
			if err := c.closeIfDue(ctx, g); err != nil {
				return err
			}

			c.mu.Lock()
			c.drain()
			solved := c.solved[idx]
			c.mu.Unlock()
			if solved && !shownSolved {
				restart = true
				break
			}

			c.broadcastFrame(g, p, im, solved)

			dwell := c.settings.FrameDuration
			if im.Final {
				dwell = c.settings.LastDuration
			}
			signaled, err := c.wait(ctx, dwell)
			if err != nil {
				return err
			}
			if !signaled {
				continue
			}
			c.log.Debug("frame woken", zap.String("image", im.URL))
			if c.isSolved(idx) && !shownSolved {
				restart = true
				break
			}
		}

		if !restart {
			return nil
		}
		shownSolved = true
		g.justSolved = true
	}
}

func (c *Coordinator) broadcastFrame(g *gallery, p *engine.Painting, im engine.Image, solved bool) {
	d := types.Directive{
		Method:  types.KindShowImage,
		Image:   im.URL,
		Preload: c.catalog.Preload(im.URL),
		Width:   fmt.Sprintf("%dpx", im.Width),
	}
	if !g.closeAt.IsZero() {
		d.EndTime = types.UnixSeconds(g.closeAt)
	}
	if solved {
		d.Title = p.Title
	}

	batch := []types.Directive{d}
	if g.justSolved {
		batch = []types.Directive{types.PlayAudio(c.settings.AudioURL), d}
		g.justSolved = false
	}
	c.log.Debug("show image", zap.String("image", im.URL), zap.Bool("solved", solved))
	c.out.Broadcast(c.team, batch, true)
}

// closeIfDue closes the gallery once the initial opening has run out and
// sleeps through the closure. The sleep ignores signals.
func (c *Coordinator) closeIfDue(ctx context.Context, g *gallery) error {
	if g.closeAt.IsZero() || !c.clock.Now().After(g.closeAt) {
		return nil
	}

	c.setPhase(PhaseClosed)
	c.log.Info("gallery closed", zap.Time("reopen_at", g.reopenAt))
	c.out.Broadcast(c.team, []types.Directive{{
		Method:        types.KindShowMessage,
		Text:          "The gallery is now closed.<br>It will reopen in " + minutes(c.settings.Closure) + ".",
		EndTime:       types.UnixSeconds(g.reopenAt),
		CountdownText: "The gallery will reopen in",
	}}, true)

	timer := c.clock.NewTimer(g.reopenAt.Sub(c.clock.Now()))
	defer timer.Stop()
	select {
	case <-timer.Chan():
	case <-ctx.Done():
		return ctx.Err()
	}

	g.closeAt = time.Time{}
	c.setPhase(PhaseReopened)
	c.log.Info("gallery reopened")
	return nil
}

// wait blocks for d or until signaled. A signal that is pending when the
// timer fires still counts as a signal.
func (c *Coordinator) wait(ctx context.Context, d time.Duration) (bool, error) {
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.wake:
		return true, nil
	case <-timer.Chan():
		select {
		case <-c.wake:
			return true, nil
		default:
			return false, nil
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *Coordinator) isSolved(idx int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.solved[idx]
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func minutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
