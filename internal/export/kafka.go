package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/services"
)

// EventCycleCompleted is the type of the cycle completion event
const EventCycleCompleted = "cycle.completed"

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CycleEvent announces a finished cycle to downstream consumers
type CycleEvent struct {
	EventID      string             `json:"event_id"`
	Type         string             `json:"type"`
	EmittedAt    time.Time          `json:"emitted_at"`
	Status       string             `json:"status"`
	Cycle        model.CycleSummary `json:"cycle"`
	ClosedRoutes []string           `json:"closed_routes"`
	Warnings     []string           `json:"warnings,omitempty"`
}

// KafkaNotifier publishes a CycleEvent keyed by cycle id
type KafkaNotifier struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaNotifier creates a synchronous producer for the configured topic
func NewKafkaNotifier(cfg config.KafkaConfig) *KafkaNotifier {
	return NewKafkaNotifierWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	})
}

// NewKafkaNotifierWithWriter creates a notifier on an existing writer
func NewKafkaNotifierWithWriter(w MessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w, now: time.Now}
}

// Name identifies the exporter in cycle reports
func (n *KafkaNotifier) Name() string { return "kafka" }

// Export publishes the completion event
func (n *KafkaNotifier) Export(ctx context.Context, res *services.CycleResult) error {
	event := CycleEvent{
		EventID:      uuid.NewString(),
		Type:         EventCycleCompleted,
		EmittedAt:    n.now().UTC(),
		Status:       string(res.Status()),
		Cycle:        res.Summary,
		ClosedRoutes: []string{},
	}
	for _, r := range res.ClosedRoutes() {
		event.ClosedRoutes = append(event.ClosedRoutes, r.RouteID)
	}
	for _, s := range res.Stages {
		if s.Err != nil {
			event.Warnings = append(event.Warnings, fmt.Sprintf("%s: %s", s.Stage, s.Error))
		}
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode cycle event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(res.CycleID()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCycleCompleted)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	logging.Debugw(ctx, "Published cycle event", "cycle", res.CycleID(), "event_id", event.EventID)
	return nil
}

// Close flushes and closes the producer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
