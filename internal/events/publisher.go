// Package events publishes domain records to RabbitMQ for analytics consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

// Noop drops every message. It is used when AMQP_URL is empty.
type Noop struct{}

func (Noop) Publish(context.Context, string, Envelope) error { return nil }
func (Noop) Close() error { return nil }

type rmqClient struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

type ConnectionOptions struct {
	URL           string
	Exchange      string
	RetryAttempts int
	Delay         time.Duration
	Logger        *slog.Logger
}

const maxDelay = 60 * time.Second

// Dial connects to RabbitMQ, declares a durable topic exchange and returns a
// publisher. Dialing retries with exponential backoff and honours ctx.
func Dial(ctx context.Context, opts ConnectionOptions) (Publisher, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	conn, err := dialWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(opts.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %q: %w", opts.Exchange, err)
	}
	return &rmqClient{conn: conn, exchange: opts.Exchange, log: opts.Logger}, nil
}

func dialWithRetry(ctx context.Context, opts ConnectionOptions) (*amqp091.Connection, error) {
	var lastErr error
	for i := 1; i <= opts.RetryAttempts; i++ {
		conn, err := amqp091.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				opts.Logger.Info("rabbit connected", slog.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err

		sleep := opts.Delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDelay {
			sleep = maxDelay
		}
		opts.Logger.Warn("rabbit dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("events: connect to RabbitMQ after %d attempts: %w", opts.RetryAttempts, lastErr)
}

func (r *rmqClient) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	msgID := msg.Meta.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	cid := msgID
	if msg.Meta.CorrelationID != nil {
		cid = *msg.Meta.CorrelationID
	}

	err = ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     msgID,
		CorrelationId: cid,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err == nil {
		r.log.Debug("published", slog.String("key", key), slog.String("exchange", r.exchange))
	}
	return err
}

func (r *rmqClient) Close() error {
	return r.conn.Close()
}
