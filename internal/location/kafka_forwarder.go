package location

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/driver-agent/internal/models"
)

// KafkaForwarder publishes position updates to the fleet telemetry
// topic. Best-effort with a short deadline; a slow broker must never
// stall the location provider.
type KafkaForwarder struct {
	writer   *kafka.Writer
	driverID string
	logger   *slog.Logger
}

func NewKafkaForwarder(brokers []string, topic, driverID string, logger *slog.Logger) *KafkaForwarder {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaForwarder{writer: w, driverID: driverID, logger: logger}
}

func (k *KafkaForwarder) Forward(pos models.DriverPosition) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(map[string]any{"driver_id": k.driverID, "loc": pos.Loc, "updated": pos.Updated})
	if err != nil {
		return
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(k.driverID), Value: b}); err != nil {
		k.logger.Warn("telemetry publish failed", "error", err)
	}
}

func (k *KafkaForwarder) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
