package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"checkin/entity"
)

// CheckInClient submits scan attempts and classifies the outcome. It never
// retries: a check-in is not idempotent from the client's perspective, so any
// retry must be a new scan initiated by the operator.
type CheckInClient struct {
	client *Client
}

func NewCheckInClient(client *Client) CheckInClient {
	return CheckInClient{
		client: client,
	}
}

type checkInRequest struct {
	QRToken           string   `json:"qr_token"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	DeviceFingerprint string   `json:"device_fingerprint,omitempty"`
	EventID           string   `json:"event_id,omitempty"`
}

type checkInResponse struct {
	Success        bool       `json:"success"`
	Message        string     `json:"message"`
	Reason         string     `json:"reason,omitempty"`
	VolunteerName  string     `json:"volunteer_name,omitempty"`
	VolunteerEmail string     `json:"volunteer_email,omitempty"`
	CheckInTime    *time.Time `json:"check_in_time,omitempty"`
	EventTitle     string     `json:"event_title,omitempty"`
}

// Submit maps the backend response onto a ScanResult. Transport failures and
// timeouts come back as KindNetworkError rather than an error; the state
// machine treats every outcome the same way, as something to show the
// operator.
func (c CheckInClient) Submit(ctx context.Context, attempt entity.ScanAttempt) entity.ScanResult {
	body := checkInRequest{
		QRToken:           attempt.Payload,
		DeviceFingerprint: attempt.Fingerprint,
		EventID:           attempt.EventID,
	}
	if attempt.Geo != nil {
		body.Latitude = &attempt.Geo.Latitude
		body.Longitude = &attempt.Geo.Longitude
	}

	status, raw, err := c.client.do(ctx, http.MethodPost, "/events/check-in", body)
	if err != nil {
		logrus.WithError(err).WithField("attempt_id", attempt.ID).Warn("check-in request failed")
		return entity.ScanResult{
			Message: "Network error. Check connectivity and rescan.",
			Kind:    entity.KindNetworkError,
		}
	}

	switch {
	case status == http.StatusOK:
		var resp checkInResponse
		if err := json.Unmarshal(raw, &resp); err != nil || !resp.Success {
			return entity.ScanResult{
				Message: "Unexpected server response. Please rescan.",
				Kind:    entity.KindUnknownServer,
			}
		}
		return entity.ScanResult{
			Success:        true,
			Message:        resp.Message,
			VolunteerName:  resp.VolunteerName,
			VolunteerEmail: resp.VolunteerEmail,
			CheckInTime:    resp.CheckInTime,
			EventTitle:     resp.EventTitle,
		}
	case status == http.StatusTooManyRequests:
		return entity.ScanResult{
			Message: "Scanning too fast. Wait a moment before the next scan.",
			Kind:    entity.KindRateLimited,
		}
	case status >= 400 && status < 500:
		return classifyRejection(raw)
	default:
		logrus.WithField("status_code", status).Error("check-in returned server error")
		return entity.ScanResult{
			Message: "Server error. Please rescan.",
			Kind:    entity.KindUnknownServer,
		}
	}
}

// classifyRejection maps the server-provided reason string onto the
// validation taxonomy. Unknown reasons are treated as an invalid code.
func classifyRejection(raw []byte) entity.ScanResult {
	var resp checkInResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return entity.ScanResult{
			Message: "Unexpected server response. Please rescan.",
			Kind:    entity.KindUnknownServer,
		}
	}

	reason := resp.Reason
	if reason == "" {
		reason = resp.Message
	}

	kind := entity.KindInvalid
	switch {
	case strings.Contains(reason, "expired"):
		kind = entity.KindExpired
	case strings.Contains(reason, "already"):
		kind = entity.KindAlreadyCheckedIn
	}

	message := resp.Message
	if message == "" {
		message = "Invalid QR code."
	}

	return entity.ScanResult{
		Message: message,
		Kind:    kind,
	}
}
