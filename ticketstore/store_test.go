package ticketstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/entity"
	"checkin/gateway"
)

func TestLoadAndFind(t *testing.T) {
	mock := &gateway.TicketsMock{
		Tickets: []entity.Ticket{
			{ID: "t1", EventTitle: "Park Cleanup"},
			{ID: "t2", EventTitle: "Food Drive"},
		},
	}
	store := New(mock)

	tickets, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	ticket, found := store.Find("t2")
	require.True(t, found)
	assert.Equal(t, "Food Drive", ticket.EventTitle)

	_, found = store.Find("missing")
	assert.False(t, found)

	// Find never touches the network
	assert.Equal(t, 1, mock.LoadCalls())
}

func TestLoadFailureKeepsSnapshot(t *testing.T) {
	mock := &gateway.TicketsMock{
		Tickets: []entity.Ticket{{ID: "t1"}},
	}
	store := New(mock)

	_, err := store.Load(context.Background())
	require.NoError(t, err)

	mock.LoadErr = entity.ErrNetwork
	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrNetwork)

	// the previous snapshot stays usable for retry-by-pull-to-refresh
	_, found := store.Find("t1")
	assert.True(t, found)
}

func TestMarkCheckedInIsLocalAndBestEffort(t *testing.T) {
	mock := &gateway.TicketsMock{
		Tickets: []entity.Ticket{{ID: "t1"}},
	}
	store := New(mock)

	_, err := store.Load(context.Background())
	require.NoError(t, err)

	checkInTime := time.Now()
	assert.True(t, store.MarkCheckedIn("t1", checkInTime))
	assert.False(t, store.MarkCheckedIn("missing", checkInTime))

	ticket, found := store.Find("t1")
	require.True(t, found)
	require.NotNil(t, ticket.CheckedInAt)
	assert.Equal(t, entity.TicketStatusCheckedIn, ticket.Status(time.Now()))

	// a fresh load overwrites the local mark with server state
	_, err = store.Load(context.Background())
	require.NoError(t, err)
	ticket, found = store.Find("t1")
	require.True(t, found)
	assert.Nil(t, ticket.CheckedInAt)
}
