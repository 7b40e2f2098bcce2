package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPaymentPublisher(t *testing.T) {
	writer := &fakeWriter{}
	pub := &KafkaPaymentPublisher{writer: writer, topic: "payment-events", writeTimeout: time.Second}

	tx := &models.PaymentTransaction{
		ID:               3,
		PaymentReference: "PAY-3",
		PaymentType:      models.PaymentTypeClientPurchase,
		PaymentStatus:    models.PaymentStatusApproved,
		Amount:           decimal.NewFromInt(90),
		PayerID:          10,
		PayeeID:          20,
		PayeeKind:        models.PayeeKindUser,
	}
	require.NoError(t, pub.Publish(context.Background(), NewPaymentEvent(PaymentEventStatusChanged, tx, models.PaymentStatusProcessing)))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "PAY-3", string(msg.Key))

	var decoded PaymentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, PaymentEventStatusChanged, decoded.Event)
	assert.Equal(t, models.PaymentStatusApproved, decoded.Status)
	assert.Equal(t, models.PaymentStatusProcessing, decoded.PreviousStatus)
	assert.Equal(t, "90", decoded.Amount)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPaymentPublisherError(t *testing.T) {
	pub := &KafkaPaymentPublisher{writer: &fakeWriter{err: errors.New("no brokers")}, topic: "t", writeTimeout: time.Second}
	err := pub.Publish(context.Background(), PaymentEvent{PaymentReference: "x"})
	assert.Error(t, err)
}

func TestNewPaymentEventPublisherWithoutBrokers(t *testing.T) {
	pub := NewPaymentEventPublisher(nil, "payment-events")
	_, ok := pub.(NoopPaymentPublisher)
	assert.True(t, ok)
	assert.NoError(t, pub.Publish(context.Background(), PaymentEvent{}))
}
