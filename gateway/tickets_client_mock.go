package gateway

import (
	"context"
	"sync"
	"time"

	"checkin/entity"
)

// TicketsMock is an in-memory stand-in for TicketsClient.
type TicketsMock struct {
	lock sync.Mutex

	Tickets  []entity.Ticket
	LoadErr  error
	TokenErr error
	ValidFor time.Duration

	// Release, when set, blocks TicketQRCode until it is closed. Used to
	// exercise single-flight coalescing.
	Release chan struct{}

	tokenCalls int
	loadCalls  int
}

func (m *TicketsMock) MyTickets(ctx context.Context) ([]entity.Ticket, error) {
	m.lock.Lock()
	m.loadCalls++
	tickets := append([]entity.Ticket(nil), m.Tickets...)
	err := m.LoadErr
	m.lock.Unlock()

	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (m *TicketsMock) TicketQRCode(ctx context.Context, ticketID string) (entity.QRToken, error) {
	m.lock.Lock()
	m.tokenCalls++
	release := m.Release
	err := m.TokenErr
	validFor := m.ValidFor
	m.lock.Unlock()

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

	if validFor <= 0 {
		validFor = 30 * time.Second
	}

	issuedAt := time.Now()
	return entity.QRToken{
		TicketID:  ticketID,
		Payload:   "mocked-token-" + ticketID,
		IssuedAt:  issuedAt,
		ValidFor:  validFor,
		ExpiresAt: issuedAt.Add(validFor),
	}, nil
}

func (m *TicketsMock) TokenCalls() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.tokenCalls
}

func (m *TicketsMock) LoadCalls() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.loadCalls
}

func (m *TicketsMock) SetTokenErr(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.TokenErr = err
}
