package relay

import (
	"context"
	"testing"
	"time"

	"github.com/DoyleJ11/badart/pkg/types"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// helper: receive one envelope with a timeout so tests never hang
func recvEnvelope(t *testing.T, ch <-chan types.Envelope, within time.Duration) types.Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber channel closed unexpectedly")
		}
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for envelope")
		return types.Envelope{}
	}
}

func recvNoEnvelope(t *testing.T, ch <-chan types.Envelope, within time.Duration) {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no envelope within %v, but got: %+v", within, env)
	case <-time.After(within):
	}
}

func recvClosed(t *testing.T, ch <-chan types.Envelope, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("subscriber channel still open after %v", within)
		}
	}
}

func newTestRelay(t *testing.T) (*Relay, *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	fc := clockwork.NewFakeClockAt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	r := New(ctx, fc, zaptest.NewLogger(t))
	t.Cleanup(func() {
		cancel()
		r.Wait()
	})
	return r, fc
}

func TestRelay_BroadcastReachesTeamOnly(t *testing.T) {
	r, fc := newTestRelay(t)

	red1, leave1 := r.Subscribe("red", "c1")
	defer leave1()
	red2, leave2 := r.Subscribe("red", "c2")
	defer leave2()
	blue, leave3 := r.Subscribe("blue", "c3")
	defer leave3()

	msgs := []types.Directive{types.ShowMessage("hello")}
	r.Broadcast("red", msgs, false)

	for _, ch := range []<-chan types.Envelope{red1, red2} {
		env := recvEnvelope(t, ch, 100*time.Millisecond)
		assert.Equal(t, int64(1), env.Serial)
		assert.Equal(t, msgs, env.Messages)
		assert.Equal(t, types.UnixSeconds(fc.Now()), env.Timestamp)
	}
	recvNoEnvelope(t, blue, 50*time.Millisecond)
}

func TestRelay_StickyReplayOnSubscribe(t *testing.T) {
	r, _ := newTestRelay(t)

	r.Broadcast("red", []types.Directive{types.ShowMessage("first")}, true)
	r.Broadcast("red", []types.Directive{types.AddChat("chatter")}, false)
	frame := []types.Directive{types.PlayAudio("/tada.wav"), {Method: types.KindShowImage, Image: "/a.png"}}
	r.Broadcast("red", frame, true)
	r.Broadcast("red", []types.Directive{types.Players("ann")}, false)

	late, leave := r.Subscribe("red", "late")
	defer leave()

	replay := recvEnvelope(t, late, 100*time.Millisecond)
	assert.Equal(t, int64(3), replay.Serial)
	assert.Equal(t, frame, replay.Messages, "only the last sticky batch is replayed")
	recvNoEnvelope(t, late, 50*time.Millisecond)

	// nothing sticky for a team that never broadcast
	other, leaveOther := r.Subscribe("blue", "x")
	defer leaveOther()
	recvNoEnvelope(t, other, 50*time.Millisecond)
}

func TestRelay_SerialIncreasesPerTeam(t *testing.T) {
	r, _ := newTestRelay(t)
	red, leaveRed := r.Subscribe("red", "a")
	defer leaveRed()
	blue, leaveBlue := r.Subscribe("blue", "b")
	defer leaveBlue()

	r.Broadcast("red", []types.Directive{types.AddChat("1")}, false)
	r.Broadcast("red", []types.Directive{types.AddChat("2")}, false)
	r.Broadcast("blue", []types.Directive{types.AddChat("x")}, false)

	assert.Equal(t, int64(1), recvEnvelope(t, red, 100*time.Millisecond).Serial)
	assert.Equal(t, int64(2), recvEnvelope(t, red, 100*time.Millisecond).Serial)
	assert.Equal(t, int64(1), recvEnvelope(t, blue, 100*time.Millisecond).Serial)
}

func TestRelay_UnsubscribeClosesChannel(t *testing.T) {
	r, _ := newTestRelay(t)
	ch, leave := r.Subscribe("red", "c1")
	leave()
	recvClosed(t, ch, 100*time.Millisecond)

	// leaving twice is harmless
	leave()
	assert.Equal(t, 0, r.Stats("red").Subscribers)
}

func TestRelay_SlowSubscriberDropped(t *testing.T) {
	r, _ := newTestRelay(t)
	slow, leaveSlow := r.Subscribe("red", "slow")
	defer leaveSlow()
	fast, leaveFast := r.Subscribe("red", "fast")
	defer leaveFast()

	for i := 0; i < OutboxSize+1; i++ {
		r.Broadcast("red", []types.Directive{types.AddChat("spam")}, false)
		recvEnvelope(t, fast, 100*time.Millisecond)
	}

	recvClosed(t, slow, time.Second)
	s := r.Stats("red")
	assert.Equal(t, 1, s.Subscribers)
	assert.Equal(t, int64(OutboxSize+1), s.Serial)
}

func TestRelay_ShutdownClosesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil, nil)

	ch, _ := r.Subscribe("red", "c1")
	require.Equal(t, 1, r.Stats("red").Subscribers)

	cancel()
	r.Wait()
	recvClosed(t, ch, time.Second)

	// after shutdown calls return instead of blocking
	r.Broadcast("red", nil, true)
	assert.Equal(t, Stats{}, r.Stats("red"))
}
