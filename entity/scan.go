package entity

import (
	"time"
)

type Geo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ScanAttempt is one decoded QR payload on its way to the check-in endpoint.
// Geo and Fingerprint are opaque, optional inputs from platform collaborators.
type ScanAttempt struct {
	ID          string    `json:"attempt_id"`
	Payload     string    `json:"qr_token"`
	Geo         *Geo      `json:"geo,omitempty"`
	Fingerprint string    `json:"device_fingerprint,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type ErrorKind string

const (
	KindRateLimited      ErrorKind = "rate_limited"
	KindInvalid          ErrorKind = "invalid"
	KindExpired          ErrorKind = "expired"
	KindAlreadyCheckedIn ErrorKind = "already_checked_in"
	KindNetworkError     ErrorKind = "network_error"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindUnknownServer    ErrorKind = "unknown_server_error"
)

// ScanResult is the classified outcome of one submission. Kind is empty when
// Success is true.
type ScanResult struct {
	Success        bool       `json:"success"`
	Message        string     `json:"message"`
	VolunteerName  string     `json:"volunteer_name,omitempty"`
	VolunteerEmail string     `json:"volunteer_email,omitempty"`
	CheckInTime    *time.Time `json:"check_in_time,omitempty"`
	EventTitle     string     `json:"event_title,omitempty"`
	Kind           ErrorKind  `json:"error_kind,omitempty"`
}
