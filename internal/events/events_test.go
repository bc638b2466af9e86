package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deliveryTracking/models"
)

type recordingPublisher struct {
	topic, key string
	msg        []byte
	err        error
}

func (r *recordingPublisher) Publish(_ context.Context, topic, key string, msg []byte) error {
	r.topic, r.key, r.msg = topic, key, msg
	return r.err
}

func (r *recordingPublisher) Close() error { return nil }

func delivered() *models.Delivery {
	driver := "D1"
	minutes := 42
	return &models.Delivery{
		ID:                 "Del1",
		OrderID:            "O1",
		DriverID:           &driver,
		Status:             models.DeliveryStatusDelivered,
		ActualDeliveryTime: &minutes,
	}
}

func TestEmitter_StatusChanged(t *testing.T) {
	rec := &recordingPublisher{}
	e := NewEmitter(rec, " tracking. ")
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, e.StatusChanged(context.Background(), StatusChangedFrom(delivered(), at)))

	assert.Equal(t, "tracking.delivery.status_changed", rec.topic)
	assert.Equal(t, "Del1", rec.key)
	assert.JSONEq(t, `{
		"type":"delivery.status_changed","deliveryId":"Del1","orderId":"O1","driverId":"D1",
		"status":"delivered","timestamp":"2026-01-01T10:00:00Z","actualDeliveryTime":42
	}`, string(rec.msg))
}

func TestEmitter_WrapsPublishError(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("broker down")}
	err := NewEmitter(rec, "").StatusChanged(context.Background(), StatusChangedFrom(delivered(), time.Now()))
	require.Error(t, err)
	assert.Equal(t, "delivery.status_changed", rec.topic)
}

func TestKafkaPublisher_SendsKeyedMessage(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewKafkaConfig())
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(m *sarama.ProducerMessage) error {
		key, _ := m.Key.Encode()
		if string(key) != "Del1" {
			return errors.New("unexpected key " + string(key))
		}
		value, _ := m.Value.Encode()
		var ev StatusChanged
		if err := json.Unmarshal(value, &ev); err != nil {
			return err
		}
		if ev.Status != models.DeliveryStatusDelivered || m.Topic != "tracking.delivery.status_changed" {
			return errors.New("unexpected message")
		}
		return nil
	})

	e := NewEmitter(NewKafkaPublisherWithProducer(producer), "tracking")
	require.NoError(t, e.StatusChanged(context.Background(), StatusChangedFrom(delivered(), time.Now())))
	require.NoError(t, e.Close())
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher("none", "", nil)
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)

	_, err = NewPublisher("carrier-pigeon", "", nil)
	assert.Error(t, err)

	_, err = NewPublisher("kafka", "", nil)
	assert.Error(t, err)
}
