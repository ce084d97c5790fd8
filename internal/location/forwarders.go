package location

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/driver-agent/internal/models"
)

// LocationUpdater is the slice of the API client used to mirror
// positions to the backend.
type LocationUpdater interface {
	UpdateLocation(ctx context.Context, pos models.DriverPosition) error
}

// APIForwarder mirrors each position to the dispatch backend over
// HTTP, best-effort.
type APIForwarder struct {
	client LocationUpdater
	logger *slog.Logger
}

func NewAPIForwarder(client LocationUpdater, logger *slog.Logger) *APIForwarder {
	return &APIForwarder{client: client, logger: logger}
}

func (a *APIForwarder) Forward(pos models.DriverPosition) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.client.UpdateLocation(ctx, pos); err != nil {
		a.logger.Warn("backend location update failed", "error", err)
	}
}

// MultiForwarder fans one update out to several sinks.
type MultiForwarder []Forwarder

func (m MultiForwarder) Forward(pos models.DriverPosition) {
	for _, f := range m {
		f.Forward(pos)
	}
}
