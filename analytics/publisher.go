package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes JSON bodies to a topic exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body any) error
	Close()
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes to RabbitMQ. Exchanges are declared durable
// topic exchanges on first use.
type AMQPPublisher struct {
	mu          sync.Mutex
	conn        *amqp.Connection
	channel     amqpChannel
	openChannel func() (amqpChannel, error)
	declared    map[string]bool
	logger      *slog.Logger
}

// NewAMQPPublisher dials amqpURL with a bounded timeout.
func NewAMQPPublisher(amqpURL string, logger *slog.Logger) (*AMQPPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("analytics: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("analytics: open channel: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPPublisher{
		conn:    conn,
		channel: ch,
		openChannel: func() (amqpChannel, error) {
			ch, err := conn.Channel()
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		declared: make(map[string]bool),
		logger:   logger,
	}, nil
}

// Publish implements Publisher. A failed publish reopens the channel and
// retries once.
func (p *AMQPPublisher) Publish(ctx context.Context, exchange, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("analytics: marshal %s: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		if err := p.reopen(); err != nil {
			return fmt.Errorf("analytics: open channel: %w", err)
		}
	}

	err = p.publish(ctx, exchange, routingKey, payload)
	if err == nil {
		return nil
	}

	p.logger.Warn("publish failed, reopening channel",
		"exchange", exchange,
		"routing_key", routingKey,
		"error", err,
	)
	if chErr := p.reopen(); chErr != nil {
		return fmt.Errorf("analytics: reopen channel: %w", errors.Join(err, chErr))
	}

	return p.publish(ctx, exchange, routingKey, payload)
}

// reopen closes the current channel, if any, and opens a fresh one.
// Exchanges are redeclared on the new channel. Must be called with p.mu held.
func (p *AMQPPublisher) reopen() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Debug("close failed channel", "error", err)
		}
		p.channel = nil
	}
	ch, err := p.openChannel()
	if err != nil {
		return err
	}
	p.channel = ch
	p.declared = make(map[string]bool)
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, exchange, routingKey string, payload []byte) error {
	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(
			exchange, // name
			"topic",  // type
			true,     // durable
			false,    // autoDelete
			false,    // internal
			false,    // noWait
			nil,      // args
		); err != nil {
			return fmt.Errorf("analytics: declare %s: %w", exchange, err)
		}
		p.declared[exchange] = true
	}

	return p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        payload,
		},
	)
}

// Close releases the channel and the connection.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// FallbackPublisher drops messages with a warning. It stands in when the
// broker is unreachable at startup.
type FallbackPublisher struct {
	Logger *slog.Logger
}

// Publish implements Publisher.
func (p *FallbackPublisher) Publish(_ context.Context, exchange, routingKey string, _ any) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("publish skipped, broker unavailable",
		"exchange", exchange,
		"routing_key", routingKey,
	)
	return nil
}

// Close implements Publisher.
func (p *FallbackPublisher) Close() {}

// Connect returns an AMQP publisher, or a FallbackPublisher when amqpURL is
// empty or the broker cannot be reached.
func Connect(amqpURL string, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(amqpURL) == "" {
		return &FallbackPublisher{Logger: logger}
	}
	p, err := NewAMQPPublisher(amqpURL, logger)
	if err != nil {
		logger.Warn("analytics broker unavailable, events will be dropped", "error", err)
		return &FallbackPublisher{Logger: logger}
	}
	return p
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("analytics: parse url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("analytics: url scheme must be amqp:// or amqps://")
	}
	return clean, nil
}
