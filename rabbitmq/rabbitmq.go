package rabbitmq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"

	"github.com/propcrowd/fundhub.go/db/models"
)

// bufPool reuses encode buffers between publishes. Sequential publishing
// keeps a single buffer alive, concurrent publishers scale the pool.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const (
	contentTypeJSON = "application/json"
)

type (
	// SubscribePaymentsFunc hands the publisher its stream of reconciled
	// payments, normally backed by the in-process pubsub.
	SubscribePaymentsFunc = func() (payments chan models.Payment, err error)
	EncodePaymentFunc     = func(ctx context.Context, w io.Writer, payment models.Payment) error
)

// AuditEvent is the broker form of one audit trail entry.
type AuditEvent struct {
	Severity  string                 `json:"severity"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NotificationEvent asks downstream consumers (mail, push, CRM) to tell
// someone something happened. Delivery is their problem.
type NotificationEvent struct {
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Client interface {
	// StartPublishReconciliations forwards every reconciled payment to
	// the payment exchange with routing key payment.<provider>.<status>.
	StartPublishReconciliations(ctx context.Context, subscribeFunc SubscribePaymentsFunc, payloadFunc EncodePaymentFunc) error
	PublishAudit(ctx context.Context, event AuditEvent) error
	PublishNotification(ctx context.Context, event NotificationEvent) error
	// Close will close all connections to rabbitmq
	Close() error
}

type DefaultClient struct {
	amqpClient AMQPClient

	logger *lecho.Logger

	paymentExchange      string
	auditExchange        string
	notificationExchange string

	declareExchanges sync.Once
	declareErr       error
}

type ClientOption = func(client *DefaultClient)

func WithPaymentExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.paymentExchange = exchange
	}
}

func WithAuditExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.auditExchange = exchange
	}
}

func WithNotificationExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.notificationExchange = exchange
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

// Dial connects to rabbitmq and returns a ready client.
func Dial(uri string, options ...ClientOption) (Client, error) {
	amqpClient, err := DialAMQP(uri)
	if err != nil {
		return nil, err
	}
	return NewClient(amqpClient, options...)
}

// NewClient wraps an existing AMQP transport, mainly a seam for tests.
func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,

		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),

		paymentExchange:      "fundhub_payment",
		auditExchange:        "fundhub_audit",
		notificationExchange: "fundhub_notification",
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.amqpClient.Close() }

func (client *DefaultClient) StartPublishReconciliations(ctx context.Context, subscribeFunc SubscribePaymentsFunc, payloadFunc EncodePaymentFunc) error {
	err := client.amqpClient.ExchangeDeclare(
		client.paymentExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	client.logger.Info("Starting rabbitmq payment publisher")

	payments, err := subscribeFunc()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case payment := <-payments:
			if err := client.publishReconciledPayment(ctx, payment, payloadFunc); err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) publishReconciledPayment(ctx context.Context, payment models.Payment, payloadFunc EncodePaymentFunc) error {
	payload := bufPool.Get().(*bytes.Buffer)
	defer func() {
		payload.Reset()
		bufPool.Put(payload)
	}()

	if err := payloadFunc(ctx, payload, payment); err != nil {
		return err
	}

	key := fmt.Sprintf("payment.%s.%s", payment.Provider, payment.Status)

	err := client.amqpClient.PublishWithContext(ctx,
		client.paymentExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}

	client.logger.Debugf("Published reconciled payment to rabbitmq payment_id:%v routing_key:%s", payment.ID, key)

	return nil
}

func (client *DefaultClient) PublishAudit(ctx context.Context, event AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	key := fmt.Sprintf("audit.%s.%s", event.Severity, event.EventType)
	return client.publishJSON(ctx, client.auditExchange, key, event)
}

func (client *DefaultClient) PublishNotification(ctx context.Context, event NotificationEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	key := fmt.Sprintf("notification.%s", event.EventType)
	return client.publishJSON(ctx, client.notificationExchange, key, event)
}

func (client *DefaultClient) publishJSON(ctx context.Context, exchange, key string, event interface{}) error {
	client.declareExchanges.Do(func() {
		for _, name := range []string{client.auditExchange, client.notificationExchange} {
			if err := client.amqpClient.ExchangeDeclare(name, "topic", true, false, false, false, nil); err != nil {
				client.declareErr = err
				return
			}
		}
	})
	if client.declareErr != nil {
		return client.declareErr
	}

	payload := bufPool.Get().(*bytes.Buffer)
	defer func() {
		payload.Reset()
		bufPool.Put(payload)
	}()

	if err := json.NewEncoder(payload).Encode(event); err != nil {
		return err
	}

	err := client.amqpClient.PublishWithContext(ctx,
		exchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		captureErr(client.logger, err)
		return err
	}
	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
