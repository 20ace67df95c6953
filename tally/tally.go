package tally

import (
	"sync"

	"checkin/entity"
)

const DefaultCapacity = 100

// Tally is the bounded, append-only log of scan outcomes for one scanning
// session. Counters are monotonic until Reset; history evicts oldest first.
// Reset is operator-driven (switching events), never automatic.
type Tally struct {
	mu        sync.RWMutex
	capacity  int
	history   []entity.ScanResult
	successes int
	failures  int
}

func New(capacity int) *Tally {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tally{
		capacity: capacity,
	}
}

func (t *Tally) Record(result entity.ScanResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if result.Success {
		t.successes++
	} else {
		t.failures++
	}

	t.history = append(t.history, result)
	if len(t.history) > t.capacity {
		t.history = t.history[len(t.history)-t.capacity:]
	}
}

func (t *Tally) SuccessCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.successes
}

func (t *Tally) FailureCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.failures
}

func (t *Tally) Total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.successes + t.failures
}

// History returns a copy, oldest first.
func (t *Tally) History() []entity.ScanResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]entity.ScanResult(nil), t.history...)
}

func (t *Tally) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = nil
	t.successes = 0
	t.failures = 0
}
