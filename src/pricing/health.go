package pricing

import (
	"errors"
	"sync"
	"time"

	"github.com/username/notefolio/backend/src/models"
)

const DefaultMaxErrors = 5

// Health tracks one provider's availability. Every call outcome goes through
// RecordError or RecordSuccess; all methods are safe for concurrent use.
type Health struct {
	mu         sync.Mutex
	status     models.ProviderStatus
	errorCount int
	maxErrors  int
	lastRetry  time.Time
	lastError  string
}

func NewHealth(maxErrors int) *Health {
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	return &Health{status: models.ProviderAvailable, maxErrors: maxErrors}
}

type HealthSnapshot struct {
	Status     models.ProviderStatus
	ErrorCount int
	MaxErrors  int
	LastRetry  time.Time
	LastError  string
}

func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Status:     h.status,
		ErrorCount: h.errorCount,
		MaxErrors:  h.maxErrors,
		LastRetry:  h.lastRetry,
		LastError:  h.lastError,
	}
}

func (h *Health) Status() models.ProviderStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Health) SetMaxErrors(n int) {
	if n <= 0 {
		return
	}
	h.mu.Lock()
	h.maxErrors = n
	h.mu.Unlock()
}

// RecordError counts a failure. A rate-limit error switches the provider to
// RATE_LIMITED at once; otherwise it becomes UNAVAILABLE when the counter
// reaches the threshold. The transition time starts the retry cooldown.
func (h *Health) RecordError(err error, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errorCount++
	if err != nil {
		h.lastError = err.Error()
	}
	switch {
	case errors.Is(err, ErrRateLimited):
		if h.status != models.ProviderRateLimited {
			h.status = models.ProviderRateLimited
			h.lastRetry = now
		}
	case h.errorCount >= h.maxErrors && h.status == models.ProviderAvailable:
		h.status = models.ProviderUnavailable
		h.lastRetry = now
	}
}

// RecordSuccess decrements the counter and restores availability once it is
// back under the threshold.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.errorCount > 0 {
		h.errorCount--
	}
	if h.status != models.ProviderAvailable && h.errorCount < h.maxErrors {
		h.status = models.ProviderAvailable
	}
}

// TryRetry reports whether the provider may be used now. An unavailable or
// rate-limited provider becomes eligible again once cooldown has passed since it
// was disabled; that retry resets its counter and status.
func (h *Health) TryRetry(now time.Time, cooldown time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == models.ProviderAvailable {
		return true
	}
	if !h.lastRetry.IsZero() && now.Sub(h.lastRetry) < cooldown {
		return false
	}
	h.status = models.ProviderAvailable
	h.errorCount = 0
	h.lastRetry = now
	return true
}

// Reset clears all state. Used by admin actions.
func (h *Health) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = models.ProviderAvailable
	h.errorCount = 0
	h.lastRetry = time.Time{}
	h.lastError = ""
}
