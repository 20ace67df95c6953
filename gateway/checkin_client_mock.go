package gateway

import (
	"context"
	"sync"

	"checkin/entity"
)

// CheckInMock records submitted attempts and replays canned results.
type CheckInMock struct {
	lock sync.Mutex

	Results []entity.ScanResult

	SubmittedAttempts []entity.ScanAttempt
}

func (m *CheckInMock) Submit(ctx context.Context, attempt entity.ScanAttempt) entity.ScanResult {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.SubmittedAttempts = append(m.SubmittedAttempts, attempt)

	if len(m.Results) == 0 {
		return entity.ScanResult{
			Success: true,
			Message: "mocked check-in",
		}
	}

	result := m.Results[0]
	if len(m.Results) > 1 {
		m.Results = m.Results[1:]
	}
	return result
}

func (m *CheckInMock) Submitted() []entity.ScanAttempt {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]entity.ScanAttempt(nil), m.SubmittedAttempts...)
}
