package rotation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"checkin/entity"
	"checkin/metrics"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateValid
	StateRefreshing
	StateError
	StateCheckedIn
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	case StateError:
		return "error"
	case StateCheckedIn:
		return "checked_in"
	default:
		return "unknown"
	}
}

const (
	// DefaultMargin is subtracted from a token's expiry when scheduling the
	// next refresh, so the displayed code never visibly lapses.
	DefaultMargin = 5 * time.Second

	requestTimeout  = 10 * time.Second
	backoffInitial  = 5 * time.Second
	backoffMax      = 60 * time.Second
	countdownPeriod = time.Second
)

type TokenSource interface {
	TicketQRCode(ctx context.Context, ticketID string) (entity.QRToken, error)
}

type Connectivity interface {
	Connected() bool
	OnReconnect(fn func())
}

// View receives presentation updates. Implementations render; they hold no
// state the controller depends on.
type View interface {
	TokenChanged(token entity.QRToken)
	Countdown(remaining time.Duration)
	Degraded(kind entity.ErrorKind, lastKnown *entity.QRToken)
	WindowNotOpen(opensAt time.Time)
	CheckedIn()
}

// Controller drives the rotating QR display for one ticket. Refreshes are
// driven by a wall-clock deadline at expiry minus margin; the per-second
// countdown is derived for presentation and never triggers a refresh itself.
type Controller struct {
	tokens TokenSource
	net    Connectivity
	view   View
	clk    clock.Clock
	margin time.Duration
	log    *logrus.Entry

	mu               sync.Mutex
	ticket           entity.Ticket
	state            State
	token            *entity.QRToken
	inFlight         bool
	pendingReconnect bool
	stopped          bool
	refreshTimer     *clock.Timer
	ticker           *clock.Ticker
	tickerStop       chan struct{}
	bo               *backoff.ExponentialBackOff
}

type Option func(*Controller)

func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clk = clk
	}
}

func WithMargin(margin time.Duration) Option {
	return func(c *Controller) {
		if margin > 0 {
			c.margin = margin
		}
	}
}

func NewController(tokens TokenSource, net Connectivity, view View, opts ...Option) *Controller {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = backoffInitial
	bo.MaxInterval = backoffMax
	bo.MaxElapsedTime = 0

	c := &Controller{
		tokens: tokens,
		net:    net,
		view:   view,
		clk:    clock.New(),
		margin: DefaultMargin,
		log:    logrus.WithField("component", "qr_rotation"),
		bo:     bo,
	}

	for _, opt := range opts {
		opt(c)
	}

	net.OnReconnect(c.onReconnect)

	return c
}

// Start begins rotating tokens for the given ticket. A checked-in or closed
// ticket never requests a token; a not-yet-open window schedules the first
// request for when the window opens.
func (c *Controller) Start(ticket entity.Ticket) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}

	now := c.clk.Now()
	c.ticket = ticket
	c.log = c.log.WithField("ticket_id", ticket.ID)

	switch ticket.Status(now) {
	case entity.TicketStatusCheckedIn:
		c.state = StateCheckedIn
		c.mu.Unlock()
		c.view.CheckedIn()
		return
	case entity.TicketStatusClosed:
		c.state = StateIdle
		c.mu.Unlock()
		c.log.Info("check-in window closed, not requesting tokens")
		return
	case entity.TicketStatusUpcoming:
		opensAt := ticket.CheckInOpensAt
		c.scheduleRefreshLocked(opensAt)
		c.mu.Unlock()
		c.view.WindowNotOpen(opensAt)
		return
	}

	c.mu.Unlock()
	c.requestToken(true)
}

// Refresh is an explicit, user-triggered refresh. It bypasses the offline
// gate; a failed attempt surfaces through the view like any other.
func (c *Controller) Refresh() {
	c.requestToken(true)
}

// requestToken is single-flight: while a request is outstanding, further
// calls coalesce into it rather than issuing another network call. Scheduled
// (non-manual) attempts are skipped while offline, with one retry queued for
// the moment connectivity returns.
func (c *Controller) requestToken(manual bool) {
	c.mu.Lock()
	if c.stopped || c.state == StateCheckedIn {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	if !manual && !c.net.Connected() {
		c.pendingReconnect = true
		c.mu.Unlock()
		c.log.Info("offline, queueing token refresh until reconnect")
		return
	}

	c.inFlight = true
	if c.token != nil {
		c.state = StateRefreshing
	} else {
		c.state = StateLoading
	}
	ticketID := c.ticket.ID
	c.mu.Unlock()

	go c.fetch(ticketID)
}

func (c *Controller) fetch(ticketID string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	token, err := c.tokens.TicketQRCode(ctx, ticketID)
	cancel()

	c.mu.Lock()
	c.inFlight = false

	if c.stopped || c.state == StateCheckedIn {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.handleFetchErrLocked(err)
		return
	}

	metrics.TokenRefreshes.WithLabelValues("ok").Inc()

	c.token = &token
	c.state = StateValid
	c.bo.Reset()
	c.scheduleRefreshLocked(token.ExpiresAt.Add(-c.margin))
	c.startCountdownLocked()
	c.mu.Unlock()

	c.view.TokenChanged(token)
}

// handleFetchErrLocked classifies a failed fetch and schedules the backed-off
// retry. A rate-limited refresh keeps a still-valid token on screen; a stale
// but unexpired code beats a blank screen. Unlocks c.mu.
func (c *Controller) handleFetchErrLocked(err error) {
	kind := entity.KindOf(err)
	metrics.TokenRefreshes.WithLabelValues(string(kind)).Inc()

	if errors.Is(err, entity.ErrRateLimited) && c.token != nil && !c.token.Expired(c.clk.Now()) {
		c.state = StateValid
	} else {
		c.state = StateError
	}

	delay := c.bo.NextBackOff()
	c.scheduleRefreshLocked(c.clk.Now().Add(delay))

	lastKnown := c.token
	c.mu.Unlock()

	c.log.WithError(err).WithField("retry_in", delay).Warn("token refresh failed")
	c.view.Degraded(kind, lastKnown)
}

func (c *Controller) scheduleRefreshLocked(at time.Time) {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}

	delay := at.Sub(c.clk.Now())
	if delay < 0 {
		delay = 0
	}

	c.refreshTimer = c.clk.AfterFunc(delay, func() {
		c.requestToken(false)
	})
}

func (c *Controller) startCountdownLocked() {
	if c.ticker != nil {
		return
	}

	c.ticker = c.clk.Ticker(countdownPeriod)
	c.tickerStop = make(chan struct{})

	go c.countdownLoop(c.ticker, c.tickerStop)
}

func (c *Controller) countdownLoop(ticker *clock.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			token := c.token
			state := c.state
			c.mu.Unlock()

			if token == nil || state == StateCheckedIn {
				continue
			}
			c.view.Countdown(token.ExpiresIn(c.clk.Now()))
		}
	}
}

// Resume handles returning from background. The scheduled timer may have
// been suspended with the process; if the token is already past expiry, a
// refresh is issued immediately instead of waiting for it.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.stopped || c.state == StateCheckedIn || c.token == nil {
		c.mu.Unlock()
		return
	}

	if !c.token.Expired(c.clk.Now()) {
		c.mu.Unlock()
		return
	}

	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	c.mu.Unlock()

	c.log.Info("token expired while backgrounded, refreshing now")
	c.requestToken(false)
}

// MarkCheckedIn puts the controller in its terminal state once the ticket is
// known checked in. The current token is discarded and no further tokens are
// requested.
func (c *Controller) MarkCheckedIn() {
	c.mu.Lock()
	if c.stopped || c.state == StateCheckedIn {
		c.mu.Unlock()
		return
	}

	c.state = StateCheckedIn
	now := c.clk.Now()
	c.ticket.CheckedInAt = &now
	c.token = nil
	c.cancelTimersLocked()
	c.mu.Unlock()

	c.view.CheckedIn()
}

// Stop cancels the countdown and the scheduled refresh. Idempotent; safe to
// call when never started.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.cancelTimersLocked()
	c.mu.Unlock()
}

func (c *Controller) cancelTimersLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
		close(c.tickerStop)
		c.ticker = nil
		c.tickerStop = nil
	}
}

func (c *Controller) onReconnect() {
	c.mu.Lock()
	pending := c.pendingReconnect && !c.stopped && c.state != StateCheckedIn
	c.pendingReconnect = false
	c.mu.Unlock()

	if pending {
		c.requestToken(false)
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the currently displayed token, if any.
func (c *Controller) Token() *entity.QRToken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return nil
	}
	token := *c.token
	return &token
}
