package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"checkin/metrics"
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

type Prober interface {
	Probe(ctx context.Context) bool
}

// HTTPProber considers the network reachable if the probe URL answers at all;
// the status code is irrelevant.
type HTTPProber struct {
	client *http.Client
	url    string
}

func NewHTTPProber(url string, timeout time.Duration) HTTPProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return HTTPProber{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

func (p HTTPProber) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return true
}

// Monitor runs a fixed-interval reachability probe, independent of any
// feature controller. Controllers only ever read Connected; the monitor is
// the sole writer.
type Monitor struct {
	clk      clock.Clock
	prober   Prober
	interval time.Duration
	log      *logrus.Entry

	mu        sync.Mutex
	connected bool
	callbacks []func()
	started   bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(prober Prober, interval time.Duration, clk clock.Clock) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		clk:      clk,
		prober:   prober,
		interval: interval,
		log:      logrus.WithField("component", "netmon"),
		// assume connected until the first probe says otherwise, so the
		// first scheduled refresh is never skipped on a healthy network
		connected: true,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	m.probe(ctx)

	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, DefaultProbeTimeout)
	up := m.prober.Probe(ctx)
	cancel()

	if up {
		metrics.ReachabilityProbes.WithLabelValues("up").Inc()
	} else {
		metrics.ReachabilityProbes.WithLabelValues("down").Inc()
	}

	m.mu.Lock()
	wasConnected := m.connected
	m.connected = up
	var callbacks []func()
	if up && !wasConnected {
		callbacks = append(callbacks, m.callbacks...)
	}
	m.mu.Unlock()

	if up != wasConnected {
		m.log.WithField("connected", up).Info("reachability changed")
	}

	for _, fn := range callbacks {
		fn()
	}
}

func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnReconnect registers a callback fired once per offline-to-online
// transition. Callbacks run on the monitor goroutine and must not block.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Stop terminates the probe loop. Idempotent; safe before Start.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.done
	}
}
