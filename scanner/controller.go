package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"checkin/entity"
)

type State int

const (
	StatePermissionPending State = iota
	StatePermissionDenied
	StateReady
	StateScanning
	StateProcessing
	StateResultShown
)

func (s State) String() string {
	switch s {
	case StatePermissionPending:
		return "permission_pending"
	case StatePermissionDenied:
		return "permission_denied"
	case StateReady:
		return "ready"
	case StateScanning:
		return "scanning"
	case StateProcessing:
		return "processing"
	case StateResultShown:
		return "result_shown"
	default:
		return "unknown"
	}
}

const DefaultSubmitTimeout = 10 * time.Second

type Submitter interface {
	Submit(ctx context.Context, attempt entity.ScanAttempt) entity.ScanResult
}

// Permissions abstracts platform permission prompts. Camera is mandatory for
// a scanning session; location is optional and its denial only omits
// coordinates from scan attempts.
type Permissions interface {
	RequestCamera(ctx context.Context) error
	RequestLocation(ctx context.Context) error
}

type Locator interface {
	Current(ctx context.Context) (entity.Geo, error)
}

type Fingerprinter interface {
	Fingerprint() string
}

// Feedback fires the operator's haptic/visual pattern, distinct for success
// and failure.
type Feedback interface {
	ScanAccepted()
	ScanRejected()
}

type Presenter interface {
	ShowResult(result entity.ScanResult)
	Clear()
}

// Publisher matches cqrs.EventBus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

type Config struct {
	EventID       string
	SubmitTimeout time.Duration
}

// Controller is the staff-side scanning state machine. Exactly one scan
// attempt is processed at a time; decodes arriving while a result is being
// processed or shown are dropped, not queued. Returning to Ready requires an
// explicit operator Reset, which is the backpressure against rapid duplicate
// scans.
type Controller struct {
	cfg       Config
	submitter Submitter
	perms     Permissions
	locator   Locator
	prints    Fingerprinter
	publisher Publisher
	feedback  Feedback
	presenter Presenter
	clk       clock.Clock
	log       *logrus.Entry

	mu              sync.Mutex
	state           State
	locationGranted bool
	lastResult      *entity.ScanResult
}

func NewController(
	cfg Config,
	submitter Submitter,
	perms Permissions,
	locator Locator,
	prints Fingerprinter,
	publisher Publisher,
	feedback Feedback,
	presenter Presenter,
	clk clock.Clock,
) *Controller {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Controller{
		cfg:       cfg,
		submitter: submitter,
		perms:     perms,
		locator:   locator,
		prints:    prints,
		publisher: publisher,
		feedback:  feedback,
		presenter: presenter,
		clk:       clk,
		log:       logrus.WithField("component", "scanner"),
	}
}

// Start requests permissions. Camera denial is terminal for the session; the
// operator must grant access externally and start a new session.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.state = StatePermissionPending
	c.mu.Unlock()

	if err := c.perms.RequestCamera(ctx); err != nil {
		c.mu.Lock()
		c.state = StatePermissionDenied
		c.mu.Unlock()
		c.log.WithError(err).Error("camera permission denied")
		return fmt.Errorf("camera permission: %w", entity.ErrPermissionDenied)
	}

	locationGranted := c.perms.RequestLocation(ctx) == nil
	if !locationGranted {
		c.log.Info("location permission denied, scans will omit coordinates")
	}

	c.mu.Lock()
	c.locationGranted = locationGranted
	c.state = StateReady
	c.mu.Unlock()

	return nil
}

// BeginScanning marks the camera feed live. Decodes are accepted in both
// Ready and Scanning.
func (c *Controller) BeginScanning() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateReady {
		c.state = StateScanning
	}
}

// OnDecode handles one decoded frame. It returns false when the decode was
// dropped: the camera keeps emitting frames of the same code, so everything
// outside Ready/Scanning is ignored to prevent duplicate submissions.
func (c *Controller) OnDecode(ctx context.Context, payload string) bool {
	c.mu.Lock()
	if c.state != StateReady && c.state != StateScanning {
		c.mu.Unlock()
		return false
	}
	c.state = StateProcessing
	locationGranted := c.locationGranted
	c.mu.Unlock()

	attempt := entity.ScanAttempt{
		ID:          uuid.NewString(),
		Payload:     payload,
		Fingerprint: c.prints.Fingerprint(),
		EventID:     c.cfg.EventID,
		Timestamp:   c.clk.Now(),
	}

	if locationGranted && c.locator != nil {
		if geo, err := c.locator.Current(ctx); err == nil {
			attempt.Geo = &geo
		} else {
			c.log.WithError(err).Debug("could not acquire location for scan")
		}
	}

	submitCtx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	result := c.submitter.Submit(submitCtx, attempt)
	cancel()

	if result.Success {
		c.feedback.ScanAccepted()
	} else {
		c.feedback.ScanRejected()
	}

	if c.publisher != nil {
		event := entity.ScanProcessed{
			Header:    entity.NewEventHeader(),
			AttemptID: attempt.ID,
			EventID:   c.cfg.EventID,
			Result:    result,
		}
		if err := c.publisher.Publish(ctx, event); err != nil {
			c.log.WithError(err).Error("failed to publish scan event")
		}
	}

	c.presenter.ShowResult(result)

	c.mu.Lock()
	c.state = StateResultShown
	c.lastResult = &result
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"attempt_id": attempt.ID,
		"success":    result.Success,
		"error_kind": result.Kind,
	}).Info("scan processed")

	return true
}

// Reset is the operator dismissing the shown result. There is deliberately
// no automatic timeout back to Ready.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.state != StateResultShown {
		c.mu.Unlock()
		return
	}
	c.state = StateReady
	c.lastResult = nil
	c.mu.Unlock()

	c.presenter.Clear()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) LastResult() *entity.ScanResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastResult == nil {
		return nil
	}
	result := *c.lastResult
	return &result
}
