package ticketstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"checkin/entity"
)

type Lister interface {
	MyTickets(ctx context.Context) ([]entity.Ticket, error)
}

// Store holds the last successfully loaded snapshot of the user's tickets.
// A failed Load keeps the previous snapshot; retrying is an explicit caller
// action (pull-to-refresh), never a silent background retry.
type Store struct {
	lister Lister
	log    *logrus.Entry

	mu       sync.RWMutex
	tickets  []entity.Ticket
	loadedAt time.Time
}

func New(lister Lister) *Store {
	return &Store{
		lister: lister,
		log:    logrus.WithField("component", "ticket_store"),
	}
}

func (s *Store) Load(ctx context.Context) ([]entity.Ticket, error) {
	tickets, err := s.lister.MyTickets(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to load tickets")
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}

	s.mu.Lock()
	s.tickets = tickets
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.log.WithField("count", len(tickets)).Debug("ticket snapshot refreshed")

	return append([]entity.Ticket(nil), tickets...), nil
}

// Find looks a ticket up in the last-loaded snapshot. No network call.
func (s *Store) Find(id string) (entity.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Find(s.tickets, func(t entity.Ticket) bool {
		return t.ID == id
	})
}

func (s *Store) All() []entity.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]entity.Ticket(nil), s.tickets...)
}

// MarkCheckedIn flags a ticket as checked in locally after a successful scan
// correlated to it. Best effort only: the server remains authoritative and
// the next Load overwrites this.
func (s *Store) MarkCheckedIn(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tickets {
		if s.tickets[i].ID == id {
			checkedInAt := at
			s.tickets[i].CheckedInAt = &checkedInAt
			return true
		}
	}
	return false
}

func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
