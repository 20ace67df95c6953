package rotation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"checkin/entity"
)

type stubTokens struct {
	mu       sync.Mutex
	clk      clock.Clock
	validFor time.Duration
	err      error
	release  chan struct{}
	calls    int
}

func (s *stubTokens) TicketQRCode(ctx context.Context, ticketID string) (entity.QRToken, error) {
	s.mu.Lock()
	s.calls++
	release := s.release
	err := s.err
	validFor := s.validFor
	s.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return entity.QRToken{}, ctx.Err()
		}
	}

	if err != nil {
		return entity.QRToken{}, err
	}

	now := s.clk.Now()
	return entity.QRToken{
		TicketID:  ticketID,
		Payload:   "payload-" + ticketID,
		IssuedAt:  now,
		ValidFor:  validFor,
		ExpiresAt: now.Add(validFor),
	}, nil
}

func (s *stubTokens) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubTokens) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubNet struct {
	mu        sync.Mutex
	connected bool
	callbacks []func()
}

func (n *stubNet) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

func (n *stubNet) OnReconnect(fn func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callbacks = append(n.callbacks, fn)
}

func (n *stubNet) setConnected(up bool) {
	n.mu.Lock()
	wasConnected := n.connected
	n.connected = up
	callbacks := append(([]func())(nil), n.callbacks...)
	n.mu.Unlock()

	if up && !wasConnected {
		for _, fn := range callbacks {
			fn()
		}
	}
}

// setConnectedSilently flips the flag without firing reconnect callbacks,
// standing in for connectivity returning while the process is suspended.
func (n *stubNet) setConnectedSilently(up bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connected = up
}

type recordingView struct {
	tokens     chan entity.QRToken
	degraded   chan entity.ErrorKind
	notOpen    chan time.Time
	checkedIn  chan struct{}
	countdowns chan time.Duration
}

func newRecordingView() *recordingView {
	return &recordingView{
		tokens:     make(chan entity.QRToken, 16),
		degraded:   make(chan entity.ErrorKind, 16),
		notOpen:    make(chan time.Time, 16),
		checkedIn:  make(chan struct{}, 16),
		countdowns: make(chan time.Duration, 128),
	}
}

func (v *recordingView) TokenChanged(token entity.QRToken) {
	v.tokens <- token
}

func (v *recordingView) Countdown(remaining time.Duration) {
	select {
	case v.countdowns <- remaining:
	default:
	}
}

func (v *recordingView) Degraded(kind entity.ErrorKind, lastKnown *entity.QRToken) {
	v.degraded <- kind
}

func (v *recordingView) WindowNotOpen(opensAt time.Time) {
	v.notOpen <- opensAt
}

func (v *recordingView) CheckedIn() {
	v.checkedIn <- struct{}{}
}

func waitToken(t *testing.T, view *recordingView) entity.QRToken {
	t.Helper()

	select {
	case token := <-view.tokens:
		return token
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a token")
		return entity.QRToken{}
	}
}

func waitDegraded(t *testing.T, view *recordingView) entity.ErrorKind {
	t.Helper()

	select {
	case kind := <-view.degraded:
		return kind
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for degraded view")
		return ""
	}
}

func openTicket(mock *clock.Mock) entity.Ticket {
	now := mock.Now()
	return entity.Ticket{
		ID:              "ticket-1",
		EventTitle:      "Park Cleanup",
		EventDate:       now.Add(2 * time.Hour),
		CheckInOpensAt:  now.Add(-time.Minute),
		CheckInClosesAt: now.Add(2 * time.Hour),
		RegisteredAt:    now.Add(-24 * time.Hour),
	}
}

func newTestController(mock *clock.Mock, validFor time.Duration) (*Controller, *stubTokens, *stubNet, *recordingView) {
	tokens := &stubTokens{clk: mock, validFor: validFor}
	net := &stubNet{connected: true}
	view := newRecordingView()
	controller := NewController(tokens, net, view, WithClock(mock))
	return controller, tokens, net, view
}

func TestRefreshScheduledAtExpiryMinusMargin(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	waitToken(t, view)
	require.Equal(t, 1, tokens.Calls())

	// just before expiresAt - margin: no refresh yet
	mock.Add(24 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tokens.Calls())

	// crossing the deadline fires exactly one refresh
	mock.Add(2 * time.Second)
	waitToken(t, view)
	assert.Equal(t, 2, tokens.Calls())
	assert.Equal(t, StateValid, controller.State())
}

func TestRequestTokenIsSingleFlight(t *testing.T) {
	mock := clock.NewMock()
	tokens := &stubTokens{clk: mock, validFor: 30 * time.Second, release: make(chan struct{})}
	net := &stubNet{connected: true}
	view := newRecordingView()
	controller := NewController(tokens, net, view, WithClock(mock))
	defer controller.Stop()

	controller.Start(openTicket(mock))

	require.Eventually(t, func() bool {
		return tokens.Calls() == 1
	}, time.Second, 10*time.Millisecond)

	// further requests while one is outstanding coalesce into it
	controller.Refresh()
	controller.Refresh()

	close(tokens.release)
	waitToken(t, view)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tokens.Calls())
}

func TestRateLimitedRefreshKeepsDisplayedToken(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	shown := waitToken(t, view)

	tokens.SetErr(entity.ErrRateLimited)
	mock.Add(25 * time.Second)

	kind := waitDegraded(t, view)
	assert.Equal(t, entity.KindRateLimited, kind)

	// the still-valid code stays on screen instead of going blank
	assert.Equal(t, StateValid, controller.State())
	current := controller.Token()
	require.NotNil(t, current)
	assert.Equal(t, shown.Payload, current.Payload)
}

func TestNetworkFailureKeepsLastKnownToken(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	shown := waitToken(t, view)

	tokens.SetErr(entity.ErrNetwork)
	mock.Add(25 * time.Second)

	kind := waitDegraded(t, view)
	assert.Equal(t, entity.KindNetworkError, kind)
	assert.Equal(t, StateError, controller.State())

	// a stale code plus a warning beats a blank screen
	current := controller.Token()
	require.NotNil(t, current)
	assert.Equal(t, shown.Payload, current.Payload)

	// the backed-off retry recovers on its own
	tokens.SetErr(nil)
	mock.Add(10 * time.Second)
	waitToken(t, view)
	assert.Equal(t, StateValid, controller.State())
}

func TestWindowNotOpenRequestsNoToken(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	now := mock.Now()
	ticket := entity.Ticket{
		ID:              "ticket-2",
		CheckInOpensAt:  now.Add(time.Hour),
		CheckInClosesAt: now.Add(3 * time.Hour),
	}

	controller.Start(ticket)

	select {
	case opensAt := <-view.notOpen:
		assert.Equal(t, ticket.CheckInOpensAt, opensAt)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for window-not-open view")
	}
	assert.Equal(t, 0, tokens.Calls())

	// the first request fires when the window opens
	mock.Add(time.Hour)
	waitToken(t, view)
	assert.Equal(t, 1, tokens.Calls())
}

func TestCheckedInTicketRequestsNoToken(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	checkedInAt := mock.Now().Add(-time.Minute)
	ticket := openTicket(mock)
	ticket.CheckedInAt = &checkedInAt

	controller.Start(ticket)

	select {
	case <-view.checkedIn:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checked-in view")
	}

	mock.Add(5 * time.Minute)
	assert.Equal(t, 0, tokens.Calls())
	assert.Equal(t, StateCheckedIn, controller.State())
}

func TestOfflineSkipsScheduledRefreshUntilReconnect(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, net, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	waitToken(t, view)

	net.setConnected(false)

	// the scheduled attempt is skipped, not failed
	mock.Add(26 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tokens.Calls())

	// one refresh runs the moment connectivity returns
	net.setConnected(true)
	waitToken(t, view)
	assert.Equal(t, 2, tokens.Calls())
}

func TestResumeAfterExpiryRefreshesImmediately(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, net, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	waitToken(t, view)

	// process suspended: the deadline timer never runs, connectivity comes
	// back without a reconnect notification
	net.setConnectedSilently(false)
	mock.Add(40 * time.Second)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, tokens.Calls())
	net.setConnectedSilently(true)

	controller.Resume()
	waitToken(t, view)
	assert.Equal(t, 2, tokens.Calls())
}

func TestResumeWithValidTokenDoesNothing(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	waitToken(t, view)

	mock.Add(10 * time.Second)
	controller.Resume()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tokens.Calls())
}

func TestMarkCheckedInIsTerminal(t *testing.T) {
	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	waitToken(t, view)

	controller.MarkCheckedIn()

	select {
	case <-view.checkedIn:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checked-in view")
	}

	assert.Equal(t, StateCheckedIn, controller.State())
	assert.Nil(t, controller.Token())

	// no further tokens are requested, ever
	mock.Add(5 * time.Minute)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tokens.Calls())
}

func TestStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := clock.NewMock()
	controller, tokens, _, view := newTestController(mock, 30*time.Second)

	controller.Start(openTicket(mock))
	waitToken(t, view)

	controller.Stop()
	controller.Stop()

	mock.Add(time.Minute)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tokens.Calls())

	// stopping a controller that never started is also fine
	never := NewController(tokens, &stubNet{connected: true}, view, WithClock(mock))
	never.Stop()
	never.Stop()
}

func TestCountdownIsDerivedFromExpiry(t *testing.T) {
	mock := clock.NewMock()
	controller, _, _, view := newTestController(mock, 30*time.Second)
	defer controller.Stop()

	controller.Start(openTicket(mock))
	token := waitToken(t, view)

	mock.Add(time.Second)

	select {
	case remaining := <-view.countdowns:
		assert.InDelta(t, 29, remaining.Seconds(), 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for countdown tick")
	}

	assert.Equal(t, 30*time.Second, token.ValidFor)
}
