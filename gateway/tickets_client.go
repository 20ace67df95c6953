package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"checkin/entity"
)

type TicketsClient struct {
	client *Client
}

func NewTicketsClient(client *Client) TicketsClient {
	return TicketsClient{
		client: client,
	}
}

type ticketsResponse struct {
	Tickets []entity.Ticket `json:"tickets"`
}

// MyTickets fetches the current user's tickets ordered by event date.
func (c TicketsClient) MyTickets(ctx context.Context) ([]entity.Ticket, error) {
	status, raw, err := c.client.do(ctx, http.MethodGet, "/events/my-tickets", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets: %w", err)
	}

	switch {
	case status == http.StatusOK:
		var resp ticketsResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("malformed tickets response: %w", entity.ErrServer)
		}
		sort.Slice(resp.Tickets, func(i, j int) bool {
			return resp.Tickets[i].EventDate.Before(resp.Tickets[j].EventDate)
		})
		return resp.Tickets, nil
	case status == http.StatusTooManyRequests:
		return nil, fmt.Errorf("GET /events/my-tickets: %w", entity.ErrRateLimited)
	default:
		return nil, fmt.Errorf("unexpected status code for GET /events/my-tickets: %d: %w", status, entity.ErrServer)
	}
}

type qrCodeResponse struct {
	QRCodeBase64 string    `json:"qr_code_base64"`
	ExpiresAt    time.Time `json:"expires_at"`
	ValidSeconds int       `json:"valid_seconds"`
}

// TicketQRCode requests a fresh rotating token for one ticket. valid_seconds
// is authoritative for scheduling; expires_at is only cross-checked.
func (c TicketsClient) TicketQRCode(ctx context.Context, ticketID string) (entity.QRToken, error) {
	path := "/tickets/" + ticketID + "/qr-code"

	status, raw, err := c.client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return entity.QRToken{}, fmt.Errorf("failed to fetch qr token: %w", err)
	}

	switch {
	case status == http.StatusOK:
		var resp qrCodeResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return entity.QRToken{}, fmt.Errorf("malformed qr token response: %w", entity.ErrServer)
		}

		payload, err := base64.StdEncoding.DecodeString(resp.QRCodeBase64)
		if err != nil {
			return entity.QRToken{}, fmt.Errorf("malformed qr token payload: %w", entity.ErrServer)
		}

		issuedAt := time.Now()
		token := entity.QRToken{
			TicketID:  ticketID,
			Payload:   string(payload),
			IssuedAt:  issuedAt,
			ValidFor:  time.Duration(resp.ValidSeconds) * time.Second,
			ExpiresAt: issuedAt.Add(time.Duration(resp.ValidSeconds) * time.Second),
		}

		if drift := resp.ExpiresAt.Sub(token.ExpiresAt); drift > 2*time.Second || drift < -2*time.Second {
			logrus.WithFields(logrus.Fields{
				"ticket_id":  ticketID,
				"expires_at": resp.ExpiresAt,
				"computed":   token.ExpiresAt,
			}).Warn("qr token expires_at disagrees with valid_seconds")
		}

		return token, nil
	case status == http.StatusTooManyRequests:
		return entity.QRToken{}, fmt.Errorf("GET %s: %w", path, entity.ErrRateLimited)
	default:
		return entity.QRToken{}, fmt.Errorf("unexpected status code for GET %s: %d: %w", path, status, entity.ErrServer)
	}
}
