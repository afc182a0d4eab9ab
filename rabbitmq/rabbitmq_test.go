package rabbitmq_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
	"github.com/propcrowd/fundhub.go/rabbitmq"
)

type publishedMessage struct {
	Exchange string
	Key      string
	Body     []byte
}

type fakeAMQPClient struct {
	mu        sync.Mutex
	declared  []string
	published []publishedMessage
}

func (f *fakeAMQPClient) Listen(ctx context.Context, exchange, routingKey, queueName string, options ...rabbitmq.AMQPListenOptions) (<-chan amqp.Delivery, error) {
	return make(chan amqp.Delivery), nil
}

func (f *fakeAMQPClient) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{Exchange: exchange, Key: key, Body: msg.Body})
	return nil
}

func (f *fakeAMQPClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	return nil
}

func (f *fakeAMQPClient) Close() error { return nil }

func (f *fakeAMQPClient) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, len(f.published))
	copy(out, f.published)
	return out
}

func TestPublishAuditRoutingKey(t *testing.T) {
	t.Parallel()
	fake := &fakeAMQPClient{}
	client, err := rabbitmq.NewClient(fake, rabbitmq.WithAuditExchange("audit_test"))
	require.NoError(t, err)

	err = client.PublishAudit(context.Background(), rabbitmq.AuditEvent{
		Severity:  common.AuditSeverityWarning,
		EventType: "payment.amount_mismatch",
		Payload:   map[string]interface{}{"payment_id": int64(7)},
	})
	require.NoError(t, err)

	messages := fake.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "audit_test", messages[0].Exchange)
	assert.Equal(t, "audit.warning.payment.amount_mismatch", messages[0].Key)

	var event rabbitmq.AuditEvent
	require.NoError(t, json.Unmarshal(messages[0].Body, &event))
	assert.Equal(t, "payment.amount_mismatch", event.EventType)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestPublishNotificationRoutingKey(t *testing.T) {
	t.Parallel()
	fake := &fakeAMQPClient{}
	client, err := rabbitmq.NewClient(fake)
	require.NoError(t, err)

	err = client.PublishNotification(context.Background(), rabbitmq.NotificationEvent{
		EventType: "project.funding_complete",
	})
	require.NoError(t, err)

	messages := fake.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "fundhub_notification", messages[0].Exchange)
	assert.Equal(t, "notification.project.funding_complete", messages[0].Key)
}

func TestStartPublishReconciliations(t *testing.T) {
	t.Parallel()
	fake := &fakeAMQPClient{}
	client, err := rabbitmq.NewClient(fake, rabbitmq.WithPaymentExchange("payment_test"))
	require.NoError(t, err)

	payments := make(chan models.Payment, 1)
	payments <- models.Payment{
		ID:       21,
		Provider: common.ProviderMock,
		Status:   common.PaymentStatusCompleted,
		Amount:   250000,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.StartPublishReconciliations(ctx,
			func() (chan models.Payment, error) { return payments, nil },
			func(ctx context.Context, w io.Writer, payment models.Payment) error {
				return json.NewEncoder(w).Encode(payment)
			})
	}()

	assert.Eventually(t, func() bool {
		return len(fake.messages()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	messages := fake.messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "payment_test", messages[0].Exchange)
	assert.Equal(t, "payment.mock.completed", messages[0].Key)

	var payment models.Payment
	require.NoError(t, json.Unmarshal(messages[0].Body, &payment))
	assert.EqualValues(t, 21, payment.ID)
}
