package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	subjectPrefix  = "monitoring.events"
	consumerPrefix = "perfmon-consumer"
)

// NATSConfig holds the JetStream connection and stream settings.
type NATSConfig struct {
	URL                  string        `json:"url" yaml:"url" mapstructure:"url"`
	StreamName           string        `json:"stream_name" yaml:"stream_name" mapstructure:"stream_name"`
	StreamSubjects       []string      `json:"stream_subjects" yaml:"stream_subjects" mapstructure:"stream_subjects"`
	MaxAge               time.Duration `json:"max_age" yaml:"max_age" mapstructure:"max_age"`
	MaxBytes             int64         `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`
	MaxMsgs              int64         `json:"max_msgs" yaml:"max_msgs" mapstructure:"max_msgs"`
	Replicas             int           `json:"replicas" yaml:"replicas" mapstructure:"replicas"`
	ConnectTimeout       time.Duration `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	ReconnectWait        time.Duration `json:"reconnect_wait" yaml:"reconnect_wait" mapstructure:"reconnect_wait"`
	MaxReconnectAttempts int           `json:"max_reconnect_attempts" yaml:"max_reconnect_attempts" mapstructure:"max_reconnect_attempts"`
}

// DefaultNATSConfig returns settings suitable for a single-node deployment.
func DefaultNATSConfig() *NATSConfig {
	return &NATSConfig{
		URL:                  nats.DefaultURL,
		StreamName:           "PM_EVENTS",
		StreamSubjects:       []string{subjectPrefix + ".>"},
		MaxAge:               24 * time.Hour,
		MaxBytes:             256 * 1024 * 1024,
		MaxMsgs:              100000,
		Replicas:             1,
		ConnectTimeout:       10 * time.Second,
		ReconnectWait:        2 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// NATSEventBus is a JetStream-backed implementation of EventBus.
type NATSEventBus struct {
	config *NATSConfig
	logger *zap.Logger
	conn   *nats.Conn
	js     nats.JetStreamContext

	mu            sync.Mutex
	subscriptions []*nats.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	closed        bool
}

// NewNATSEventBus connects to NATS, ensures the event stream exists and
// returns a ready-to-use bus.
func NewNATSEventBus(config *NATSConfig, logger *zap.Logger) (*NATSEventBus, error) {
	opts := []nats.Option{
		nats.Timeout(config.ConnectTimeout),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnectAttempts),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", config.URL, err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &NATSEventBus{
		config: config,
		logger: logger,
		conn:   conn,
		js:     js,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := bus.setupStream(); err != nil {
		cancel()
		conn.Close()
		return nil, err
	}

	return bus, nil
}

func (b *NATSEventBus) setupStream() error {
	streamConfig := &nats.StreamConfig{
		Name:       b.config.StreamName,
		Subjects:   b.config.StreamSubjects,
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		MaxAge:     b.config.MaxAge,
		MaxBytes:   b.config.MaxBytes,
		MaxMsgs:    b.config.MaxMsgs,
		Replicas:   b.config.Replicas,
		Duplicates: 5 * time.Minute,
	}

	_, err := b.js.StreamInfo(b.config.StreamName)
	if err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", b.config.StreamName, err)
		}
		b.logger.Info("created event stream", zap.String("stream", b.config.StreamName))
		return nil
	}

	if _, err := b.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", b.config.StreamName, err)
	}
	return nil
}

// Publish publishes an event and waits for the stream acknowledgement.
func (b *NATSEventBus) Publish(ctx context.Context, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	subject := eventTypeToSubject(event.Type)
	if _, err := b.js.Publish(subject, data, nats.MsgId(event.ID), nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish event %s to %s: %w", event.ID, subject, err)
	}

	b.logger.Debug("published event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subject", subject),
	)
	return nil
}

// PublishAsync publishes an event without waiting for the acknowledgement.
func (b *NATSEventBus) PublishAsync(_ context.Context, event *Event) error {
	data, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	subject := eventTypeToSubject(event.Type)
	if _, err := b.js.PublishAsync(subject, data, nats.MsgId(event.ID)); err != nil {
		return fmt.Errorf("failed to publish event %s to %s: %w", event.ID, subject, err)
	}
	return nil
}

// Subscribe creates a durable pull consumer for the event type and dispatches
// incoming events to handler until the bus is closed.
func (b *NATSEventBus) Subscribe(_ context.Context, eventType EventType, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	subject := eventTypeToSubject(eventType)
	consumerName := eventTypeToConsumer(eventType)

	sub, err := b.js.PullSubscribe(subject, consumerName,
		nats.AckExplicit(),
		nats.DeliverNew(),
		nats.MaxDeliver(3),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	b.subscriptions = append(b.subscriptions, sub)
	b.wg.Add(1)
	go b.processMessages(sub, eventType, handler)

	b.logger.Info("subscribed to events",
		zap.String("event_type", string(eventType)),
		zap.String("subject", subject),
		zap.String("consumer", consumerName),
	)
	return nil
}

func (b *NATSEventBus) processMessages(sub *nats.Subscription, eventType EventType, handler EventHandler) {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(1*time.Second))
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				continue
			}
			if b.ctx.Err() != nil {
				return
			}
			b.logger.Error("failed to fetch messages",
				zap.String("event_type", string(eventType)),
				zap.Error(err),
			)
			continue
		}

		for _, msg := range msgs {
			event, err := UnmarshalEvent(msg.Data)
			if err != nil {
				b.logger.Error("failed to unmarshal event", zap.Error(err))
				_ = msg.Nak()
				continue
			}

			if err := handler.Handle(b.ctx, event); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err),
				)
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

// Close stops all subscriptions and closes the NATS connection.
func (b *NATSEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subscriptions
	b.subscriptions = nil
	b.mu.Unlock()

	b.cancel()
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	}
	b.wg.Wait()
	b.conn.Close()
	return nil
}

func eventTypeToSubject(eventType EventType) string {
	return subjectPrefix + "." + string(eventType)
}

func eventTypeToConsumer(eventType EventType) string {
	return consumerPrefix + "-" + strings.ReplaceAll(string(eventType), ".", "-")
}
