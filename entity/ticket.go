package entity

import (
	"time"
)

type TicketStatus string

const (
	TicketStatusUpcoming    TicketStatus = "upcoming"
	TicketStatusCheckInOpen TicketStatus = "checkin_open"
	TicketStatusCheckedIn   TicketStatus = "checked_in"
	TicketStatusClosed      TicketStatus = "closed"
)

// Ticket is a volunteer's registration for an event. The backend owns it;
// the client only reads it and may mark it checked in locally until the
// next fetch overwrites the snapshot.
type Ticket struct {
	ID              string     `json:"ticket_id"`
	EventID         string     `json:"event_id"`
	EventTitle      string     `json:"event_title"`
	EventDate       time.Time  `json:"event_date"`
	Location        string     `json:"location"`
	CheckInOpensAt  time.Time  `json:"check_in_opens_at"`
	CheckInClosesAt time.Time  `json:"check_in_closes_at"`
	CheckedInAt     *time.Time `json:"checked_in_at,omitempty"`
	RegisteredAt    time.Time  `json:"registered_at"`
}

// Status derives the ticket state from the check-in window and CheckedInAt.
// CheckInOpensAt <= CheckInClosesAt is guaranteed by the backend.
func (t Ticket) Status(now time.Time) TicketStatus {
	switch {
	case t.CheckedInAt != nil:
		return TicketStatusCheckedIn
	case now.Before(t.CheckInOpensAt):
		return TicketStatusUpcoming
	case now.After(t.CheckInClosesAt):
		return TicketStatusClosed
	default:
		return TicketStatusCheckInOpen
	}
}

func (t Ticket) CheckInOpen(now time.Time) bool {
	return t.Status(now) == TicketStatusCheckInOpen
}
