package rabbitmq

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

const (
	defaultHeartbeat = 10 * time.Second
	defaultLocale    = "en_US"

	msgReconnect = "RECONNECT_DONE"
	msgClose     = "CLOSE"
)

type listenerMsg = string

// AMQPClient is the thin transport layer under Client. It hides
// connection loss: consumers keep their delivery channel across
// reconnects and publishes wait for a reconnect in flight.
type AMQPClient interface {
	Listen(ctx context.Context, exchange string, routingKey string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Close() error
}

type amqpClient struct {
	conn *amqp.Connection
	uri  string

	// Publishers and consumers use separate channels so consumers are
	// isolated from flow control applied to the publishing side.
	consumeChannel *amqp.Channel
	publishChannel *amqp.Channel

	notifyCloseChan chan *amqp.Error

	listeners    []chan listenerMsg
	reconnecting atomic.Bool

	logger *lecho.Logger
}

func DialAMQP(uri string) (AMQPClient, error) {
	client := &amqpClient{
		uri: uri,
		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),
	}
	if err := client.connect(); err != nil {
		return nil, err
	}

	client.listeners = []chan listenerMsg{}
	go client.reconnectionLoop()

	return client, nil
}

func (c *amqpClient) connect() error {
	conn, err := amqp.DialConfig(c.uri, amqp.Config{
		Heartbeat: defaultHeartbeat,
		Locale:    defaultLocale,
		Dial:      amqp.DefaultDial(time.Second * 3),
	})
	if err != nil {
		return err
	}

	consumeChannel, err := conn.Channel()
	if err != nil {
		return err
	}
	publishChannel, err := conn.Channel()
	if err != nil {
		return err
	}

	notifyCloseChan := make(chan *amqp.Error)
	conn.NotifyClose(notifyCloseChan)

	c.conn = conn
	c.consumeChannel = consumeChannel
	c.publishChannel = publishChannel
	c.notifyCloseChan = notifyCloseChan

	return nil
}

func (c *amqpClient) reconnectionLoop() {
	for amqpError := range c.notifyCloseChan {
		c.logger.Error(amqpError)

		policy := backoff.NewExponentialBackOff()
		policy.MaxInterval = time.Second * 10
		policy.MaxElapsedTime = time.Minute

		c.reconnecting.Store(true)

		c.logger.Info("amqp: trying to reconnect...")
		if err := backoff.Retry(c.connect, policy); err != nil {
			for _, listener := range c.listeners {
				listener <- msgClose
			}
			return
		}

		c.reconnecting.Store(false)
		c.logger.Info("amqp: successfully reconnected")

		for _, listener := range c.listeners {
			listener <- msgReconnect
		}
	}
}

func (c *amqpClient) Close() error {
	return c.conn.Close()
}

func (c *amqpClient) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	// short lived channel, a declare on a closed channel would poison
	// the shared publish channel
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	return ch.ExchangeDeclare(name, kind, durable, autoDelete, internal, noWait, args)
}

type ListenOptions struct {
	Durable    bool
	AutoDelete bool
	Internal   bool
	Wait       bool
	Exclusive  bool
	AutoAck    bool
}

type AMQPListenOptions = func(opts ListenOptions) ListenOptions

func WithDurable(durable bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Durable = durable
		return opts
	}
}

func WithAutoDelete(autoDelete bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.AutoDelete = autoDelete
		return opts
	}
}

func WithExclusive(exclusive bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.Exclusive = exclusive
		return opts
	}
}

func WithAutoAck(autoAck bool) AMQPListenOptions {
	return func(opts ListenOptions) ListenOptions {
		opts.AutoAck = autoAck
		return opts
	}
}

// Listen consumes routingKey from exchange through queueName. The
// returned channel survives reconnects, the wrapper goroutine swaps the
// underlying delivery channel when the reconnection loop says so.
func (c *amqpClient) Listen(ctx context.Context, exchange string, routingKey string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error) {
	deliveries, err := c.consume(exchange, routingKey, queueName, options...)
	if err != nil {
		return nil, err
	}

	clientChannel := make(chan amqp.Delivery)

	notifyReconnectChan := make(chan listenerMsg, 2)
	c.listeners = append(c.listeners, notifyReconnectChan)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case msg := <-notifyReconnectChan:
				switch msg {
				case msgReconnect:
					d, err := c.consume(exchange, routingKey, queueName, options...)
					if err != nil {
						c.logger.Error(err)
						return
					}
					c.logger.Infof("amqp: resumed consuming routing_key:%s after reconnect", routingKey)
					deliveries = d

				case msgClose:
					close(clientChannel)
					return
				}

			case delivery, ok := <-deliveries:
				if ok {
					clientChannel <- delivery
				}
			}
		}
	}()

	return clientChannel, nil
}

func (c *amqpClient) consume(exchange string, routingKey string, queueName string, options ...AMQPListenOptions) (<-chan amqp.Delivery, error) {
	opts := ListenOptions{
		Durable: true,
	}
	for _, opt := range options {
		opts = opt(opts)
	}

	err := c.consumeChannel.ExchangeDeclare(
		exchange,
		"topic",
		opts.Durable,
		opts.AutoDelete,
		opts.Internal,
		opts.Wait,
		nil,
	)
	if err != nil {
		return nil, err
	}

	queue, err := c.consumeChannel.QueueDeclare(
		queueName,
		opts.Durable,
		opts.AutoDelete,
		opts.Exclusive,
		opts.Wait,
		// failed messages are not requeued forever, a poison message
		// must not loop against the database
		amqp.Table{
			"delivery-limit": 10,
		},
	)
	if err != nil {
		return nil, err
	}

	err = c.consumeChannel.QueueBind(
		queue.Name,
		routingKey,
		exchange,
		opts.Wait,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return c.consumeChannel.Consume(
		queue.Name,
		"",
		opts.AutoAck,
		opts.Exclusive,
		false,
		opts.Wait,
		nil,
	)
}

func (c *amqpClient) PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error {
	if c.reconnecting.Load() {
		policy := backoff.NewExponentialBackOff()
		policy.MaxInterval = time.Second * 10
		policy.MaxElapsedTime = time.Minute

		err := backoff.Retry(func() error {
			if c.reconnecting.Load() {
				return errors.New("amqp: trying to publish during reconnect")
			}
			return nil
		}, policy)
		if err != nil {
			return err
		}
	}

	return c.publishChannel.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}
