package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"deliveryTracking/models"
)

const TopicStatusChanged = "delivery.status_changed"

// Publisher sends an encoded event to a broker topic. Key orders events for
// the same entity on brokers that partition.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, msg []byte) error
	Close() error
}

// StatusChanged is emitted after a driver-initiated transition is persisted.
type StatusChanged struct {
	Type               string                `json:"type"`
	DeliveryID         string                `json:"deliveryId"`
	OrderID            string                `json:"orderId"`
	DriverID           string                `json:"driverId"`
	Status             models.DeliveryStatus `json:"status"`
	Timestamp          time.Time             `json:"timestamp"`
	ActualDeliveryTime *int                  `json:"actualDeliveryTime,omitempty"`
	CancellationReason *string               `json:"cancellationReason,omitempty"`
}

// StatusChangedFrom builds the event from a persisted delivery.
func StatusChangedFrom(d *models.Delivery, at time.Time) StatusChanged {
	ev := StatusChanged{
		Type:               TopicStatusChanged,
		DeliveryID:         d.ID,
		OrderID:            d.OrderID,
		Status:             d.Status,
		Timestamp:          at,
		ActualDeliveryTime: d.ActualDeliveryTime,
		CancellationReason: d.CancellationReason,
	}
	if d.DriverID != nil {
		ev.DriverID = *d.DriverID
	}
	return ev
}

// Emitter encodes domain events and routes them to prefixed topics.
type Emitter struct {
	pub    Publisher
	prefix string
}

func NewEmitter(pub Publisher, prefix string) *Emitter {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Emitter{pub: pub, prefix: strings.Trim(strings.TrimSpace(prefix), ".")}
}

func (e *Emitter) Topic(name string) string {
	if e.prefix == "" {
		return name
	}
	return e.prefix + "." + name
}

func (e *Emitter) StatusChanged(ctx context.Context, ev StatusChanged) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	if err := e.pub.Publish(ctx, e.Topic(TopicStatusChanged), ev.DeliveryID, value); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (e *Emitter) Close() error {
	return e.pub.Close()
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, []byte) error {
	return nil
}

func (NopPublisher) Close() error {
	return nil
}

// NewPublisher connects the configured broker: "nats", "kafka", or none.
func NewPublisher(broker, natsURL string, kafkaBrokers []string) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(broker)) {
	case "", "none":
		return NopPublisher{}, nil
	case "nats":
		return NewNATSPublisher(natsURL)
	case "kafka":
		return NewKafkaPublisher(kafkaBrokers)
	default:
		return nil, fmt.Errorf("unsupported events broker %q", broker)
	}
}
