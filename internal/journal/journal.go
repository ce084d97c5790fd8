// Package journal records terminal offer outcomes for acceptance-rate
// analytics. Timeouts are recorded distinctly from explicit rejections
// so they can be excluded from the driver's acceptance rate.
package journal

import (
	"sync"

	"github.com/example/driver-agent/internal/models"
)

// Journal defines persistence for offer decisions.
type Journal interface {
	Record(d models.OfferDecision) error
}

// Memory keeps decisions in process; the default when no DSN is
// configured.
type Memory struct {
	mu        sync.RWMutex
	decisions []models.OfferDecision
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(d models.OfferDecision) error {
	m.mu.Lock()
	m.decisions = append(m.decisions, d)
	m.mu.Unlock()
	return nil
}

// All returns a copy of every recorded decision.
func (m *Memory) All() []models.OfferDecision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.OfferDecision, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// AcceptanceRate is accepted / (accepted + user rejections). Expired
// and superseded offers do not count against the driver.
func (m *Memory) AcceptanceRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accepted, rejected int
	for _, d := range m.decisions {
		switch {
		case d.Outcome == models.OutcomeAccepted:
			accepted++
		case d.Outcome == models.OutcomeRejected && d.Reason == models.RejectByUser:
			rejected++
		}
	}
	if accepted+rejected == 0 {
		return 0
	}
	return float64(accepted) / float64(accepted+rejected)
}
