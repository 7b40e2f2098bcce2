package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

const (
	PaymentEventInitiated     = "payment_initiated"
	PaymentEventStatusChanged = "payment_status_changed"
)

// PaymentEvent is published after a ledger write commits.
type PaymentEvent struct {
	Event            string               `json:"event"`
	TransactionID    uint                 `json:"transaction_id"`
	PaymentReference string               `json:"payment_reference"`
	PaymentType      models.PaymentType   `json:"payment_type"`
	Status           models.PaymentStatus `json:"status"`
	PreviousStatus   models.PaymentStatus `json:"previous_status,omitempty"`
	Amount           string               `json:"amount"`
	PayerID          uint                 `json:"payer_id"`
	PayeeID          uint                 `json:"payee_id"`
	PayeeKind        models.PayeeKind     `json:"payee_kind"`
	OccurredAt       time.Time            `json:"occurred_at"`
}

func NewPaymentEvent(event string, tx *models.PaymentTransaction, previous models.PaymentStatus) PaymentEvent {
	return PaymentEvent{
		Event:            event,
		TransactionID:    tx.ID,
		PaymentReference: tx.PaymentReference,
		PaymentType:      tx.PaymentType,
		Status:           tx.PaymentStatus,
		PreviousStatus:   previous,
		Amount:           tx.Amount.String(),
		PayerID:          tx.PayerID,
		PayeeID:          tx.PayeeID,
		PayeeKind:        tx.PayeeKind,
		OccurredAt:       time.Now().UTC(),
	}
}

type PaymentEventPublisher interface {
	Publish(ctx context.Context, event PaymentEvent) error
	Close() error
}

// NoopPaymentPublisher is used when no broker is configured.
type NoopPaymentPublisher struct{}

func (NoopPaymentPublisher) Publish(context.Context, PaymentEvent) error {
	return nil
}

func (NoopPaymentPublisher) Close() error {
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPaymentPublisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
}

func NewKafkaPaymentPublisher(brokers []string, topic string) *KafkaPaymentPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Async:        true,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			utils.InfoLogger.Debugf(msg, args...)
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			utils.ErrorLogger.Errorf(msg, args...)
		}),
	}
	writer.Completion = func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		for _, msg := range messages {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"topic": msg.Topic,
				"key":   string(msg.Key),
			}).Errorf("failed to deliver payment event: %v", err)
		}
	}

	return &KafkaPaymentPublisher{writer: writer, topic: topic, writeTimeout: writer.WriteTimeout}
}

// Publish keys messages by payment reference so one payment's events stay
// ordered within a partition.
func (p *KafkaPaymentPublisher) Publish(ctx context.Context, event PaymentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.PaymentReference),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.Event)},
			{Key: "transaction_id", Value: []byte(strconv.FormatUint(uint64(event.TransactionID), 10))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish payment event to %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaPaymentPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	utils.InfoLogger.Info("payment event publisher closed")
	return nil
}

// NewPaymentEventPublisher picks Kafka when brokers are configured.
func NewPaymentEventPublisher(brokers []string, topic string) PaymentEventPublisher {
	if len(brokers) == 0 {
		return NoopPaymentPublisher{}
	}
	return NewKafkaPaymentPublisher(brokers, topic)
}
