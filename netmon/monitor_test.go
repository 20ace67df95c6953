package netmon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubProber struct {
	mu    sync.Mutex
	up    bool
	calls int
}

func (p *stubProber) Probe(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.up
}

func (p *stubProber) setUp(up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.up = up
}

func (p *stubProber) probeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestMonitorTracksReachability(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := clock.NewMock()
	prober := &stubProber{up: true}
	monitor := New(prober, 30*time.Second, mock)
	defer monitor.Stop()

	monitor.Start(context.Background())

	require.Eventually(t, func() bool {
		return prober.probeCalls() >= 1
	}, time.Second, 10*time.Millisecond)
	assert.True(t, monitor.Connected())

	prober.setUp(false)
	mock.Add(30 * time.Second)

	require.Eventually(t, func() bool {
		return !monitor.Connected()
	}, time.Second, 10*time.Millisecond)
}

func TestOnReconnectFiresOncePerTransition(t *testing.T) {
	mock := clock.NewMock()
	prober := &stubProber{up: false}
	monitor := New(prober, 30*time.Second, mock)
	defer monitor.Stop()

	var mu sync.Mutex
	reconnects := 0
	monitor.OnReconnect(func() {
		mu.Lock()
		reconnects++
		mu.Unlock()
	})

	monitor.Start(context.Background())

	require.Eventually(t, func() bool {
		return !monitor.Connected()
	}, time.Second, 10*time.Millisecond)

	prober.setUp(true)
	mock.Add(30 * time.Second)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reconnects == 1
	}, time.Second, 10*time.Millisecond)

	// staying online does not refire
	mock.Add(30 * time.Second)
	require.Eventually(t, func() bool {
		return prober.probeCalls() >= 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, reconnects)
	mu.Unlock()
}

func TestStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := clock.NewMock()
	monitor := New(&stubProber{up: true}, 30*time.Second, mock)

	monitor.Start(context.Background())
	monitor.Stop()
	monitor.Stop()

	// stopping a monitor that never started must not hang
	idle := New(&stubProber{}, 30*time.Second, mock)
	idle.Stop()
}
