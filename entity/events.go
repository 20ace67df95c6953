package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"published_at"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

// ScanProcessed is published on the internal bus once per submitted scan,
// after the outcome has been classified.
type ScanProcessed struct {
	Header    EventHeader `json:"header"`
	AttemptID string      `json:"attempt_id"`
	EventID   string      `json:"event_id,omitempty"`
	Result    ScanResult  `json:"result"`
}
