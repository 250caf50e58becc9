package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys consumed by the notification service.
const (
	EntitlementActivated = "entitlement.activated"
	SubscriptionExpired  = "subscription.expired"
	RenewalDue           = "subscription.renewal_due"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close()
}

// Envelope wraps every payload on the wire.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

type EntitlementActivatedEvent struct {
	UserID           string    `json:"userId"`
	PlanType         string    `json:"planType"`
	BillingCycle     string    `json:"billingCycle,omitempty"`
	Gateway          string    `json:"gateway"`
	GatewayPaymentID string    `json:"gatewayPaymentId"`
	SubscriptionEnd  time.Time `json:"subscriptionEnd"`
}

type SubscriptionExpiredEvent struct {
	UserID    string    `json:"userId"`
	ExpiredAt time.Time `json:"expiredAt"`
}

type RenewalDueEvent struct {
	UserID          string    `json:"userId"`
	PlanType        string    `json:"planType"`
	SubscriptionEnd time.Time `json:"subscriptionEnd"`
}

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitPublisher publishes JSON envelopes to a durable topic exchange.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	channel  amqpChannel
	exchange string
	logger   *zap.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewRabbitPublisher(amqpURL, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	p, err := newRabbitPublisher(channel, exchange, logger)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newRabbitPublisher(channel amqpChannel, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	err := channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitPublisher{
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	envelope := Envelope{
		ID:         uuid.New().String(),
		Type:       routingKey,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    envelope.ID,
			Timestamp:    envelope.OccurredAt,
			Body:         body,
		})
	if err != nil {
		return err
	}

	p.logger.Debug("Published event",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", routingKey),
		zap.String("event_id", envelope.ID))
	return nil
}

func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoopPublisher drops events. It is used when RABBITMQ_URL is unset.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (n *NoopPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	n.logger.Debug("Event dropped, no broker configured", zap.String("routing_key", routingKey))
	return nil
}

func (n *NoopPublisher) Close() {}
