package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DoyleJ11/badart/internal/engine"
	"github.com/DoyleJ11/badart/internal/team"
	"github.com/DoyleJ11/badart/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discard struct{}

func (discard) Broadcast(string, []types.Directive, bool) {}

func testHub(t *testing.T) (*Hub, *atomic.Int32) {
	t.Helper()
	p, err := engine.NewPainting("Bad Test", []string{"TEST"}, []engine.Image{{URL: "/a.png", Width: 800}})
	require.NoError(t, err)
	cat, err := engine.NewCatalog([]*engine.Painting{p})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	var created atomic.Int32
	h := NewHub(ctx, func(ctx context.Context, name string) *team.Coordinator {
		created.Add(1)
		return team.New(ctx, name, team.Options{Catalog: cat, Broadcaster: discard{}, Settings: team.DefaultSettings()})
	})
	t.Cleanup(func() {
		cancel()
		h.Wait()
	})
	return h, &created
}

func TestHub_Ensure_Get_SamePointer(t *testing.T) {
	h, created := testHub(t)

	assert.Nil(t, h.Get("ZED123"))

	c1 := h.Ensure("ZED123")
	c2 := h.Get("ZED123")
	c3 := h.Ensure("ZED123")

	if c1 == nil || c1 != c2 || c1 != c3 {
		t.Fatalf("expected same coordinator pointer")
	}
	assert.Equal(t, "ZED123", c1.Team())
	assert.Equal(t, int32(1), created.Load())
}

func TestHub_ConcurrentEnsureCreatesOnce(t *testing.T) {
	h, created := testHub(t)

	const n = 32
	got := make([]*team.Coordinator, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = h.Ensure("red")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, got[0], got[i])
	}
	assert.Equal(t, int32(1), created.Load())
}

func TestHub_TeamsAreIsolated(t *testing.T) {
	h, _ := testHub(t)

	red := h.Ensure("red")
	blue := h.Ensure("blue")
	require.NotSame(t, red, blue)

	red.JoinWait("s1")
	red.RequestOpen()

	assert.True(t, red.View().OpenRequested)
	assert.False(t, blue.View().OpenRequested)
	assert.Equal(t, 0, blue.View().Sessions)
	assert.Equal(t, []string{"blue", "red"}, h.Teams())
}

func TestHub_WaitStopsEveryLoop(t *testing.T) {
	p, err := engine.NewPainting("Bad Test", []string{"TEST"}, []engine.Image{{URL: "/a.png", Width: 800}})
	require.NoError(t, err)
	cat, err := engine.NewCatalog([]*engine.Painting{p})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(ctx, func(ctx context.Context, name string) *team.Coordinator {
		return team.New(ctx, name, team.Options{Catalog: cat, Broadcaster: discard{}, Settings: team.DefaultSettings()})
	})

	red := h.Ensure("red")
	red.JoinWait("s1")
	idle := h.Ensure("blue") // never joined, so no loop

	cancel()
	h.Wait()

	select {
	case <-red.Done():
	default:
		t.Fatalf("red loop still running after Wait")
	}
	assert.False(t, idle.View().Running)
}
