// Package tap republishes every server push onto NATS so other local processes can
// follow the device without their own backend connection.
package tap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus/gateway"
)

// Config holds configuration for the NATS tap
type Config struct {
	URL           string
	SubjectPrefix string
	// StreamName enables JetStream persistence when set; plain core NATS otherwise.
	StreamName    string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
	BufferSize    int
}

// DefaultConfig returns default tap configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "focus.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
		BufferSize:    256,
	}
}

type publishFunc func(ctx context.Context, msg *nats.Msg, msgID string) error

// Tap forwards server events to NATS. Handle never blocks the event path; events
// that do not fit in the buffer are counted and dropped.
type Tap struct {
	nc      *nats.Conn
	config  Config
	publish publishFunc
	queue   chan gateway.ServerEvent

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New connects to NATS and, when a stream is configured, ensures it exists.
func New(cfg Config) (*Tap, error) {
	opts := []nats.Option{
		nats.Name("focus-tap"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	publish := func(ctx context.Context, msg *nats.Msg, _ string) error {
		return nc.PublishMsg(msg)
	}

	if cfg.StreamName != "" {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
		if err := ensureStream(context.Background(), js, cfg); err != nil {
			nc.Close()
			return nil, fmt.Errorf("ensure stream: %w", err)
		}
		publish = func(ctx context.Context, msg *nats.Msg, msgID string) error {
			ack, err := js.PublishMsg(ctx, msg,
				jetstream.WithMsgID(msgID),
				jetstream.WithExpectStream(cfg.StreamName),
			)
			if err != nil {
				return err
			}
			log.Debug().
				Str("subject", msg.Subject).
				Uint64("sequence", ack.Sequence).
				Msg("published to JetStream")
			return nil
		}
	}

	t := newTap(cfg, publish)
	t.nc = nc
	return t, nil
}

func newTap(cfg Config, publish publishFunc) *Tap {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	return &Tap{
		config:  cfg,
		publish: publish,
		queue:   make(chan gateway.ServerEvent, cfg.BufferSize),
	}
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg Config) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Focus device events mirrored from the backend",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	if _, err := js.Stream(ctx, cfg.StreamName); err != nil {
		if _, err := js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", cfg.StreamName).Msg("created JetStream stream")
		return nil
	}
	if _, err := js.UpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	return nil
}

// Handle queues event for publishing.
func (t *Tap) Handle(event gateway.ServerEvent) {
	select {
	case t.queue <- event:
	default:
		t.dropped.Add(1)
		log.Warn().
			Str("event_type", string(event.Type)).
			Msg("tap buffer full, dropping event")
	}
}

// Run publishes queued events until ctx is cancelled.
func (t *Tap) Run(ctx context.Context) {
	log.Info().Str("prefix", t.config.SubjectPrefix).Msg("event tap started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event tap shutting down")
			return
		case event := <-t.queue:
			msg, err := BuildMessage(t.config.SubjectPrefix, event)
			if err != nil {
				log.Error().Err(err).Str("event_id", event.ID).Msg("failed to build tap message")
				continue
			}
			if err := t.publish(ctx, msg, event.ID); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to publish tap message")
				continue
			}
			t.published.Add(1)
		}
	}
}

// Stats returns published and dropped counts.
func (t *Tap) Stats() (published, dropped uint64) {
	return t.published.Load(), t.dropped.Load()
}

// Diagnostics summarizes the tap for the health report.
func (t *Tap) Diagnostics() map[string]interface{} {
	published, dropped := t.Stats()
	return map[string]interface{}{
		"connected": t.Connected(),
		"published": published,
		"dropped":   dropped,
	}
}

// Connected reports the NATS connection state.
func (t *Tap) Connected() bool {
	return t.nc != nil && t.nc.IsConnected()
}

func (t *Tap) Close() error {
	log.Info().Msg("stopping event tap")
	if t.nc != nil {
		t.nc.Close()
	}
	return nil
}

// Subject returns the NATS subject for an event type.
func Subject(prefix string, eventType gateway.EventType) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, string(eventType))
	if name == "" {
		name = "unknown"
	}
	return prefix + "." + name
}

// BuildMessage wraps event in the tap envelope.
func BuildMessage(prefix string, event gateway.ServerEvent) (*nats.Msg, error) {
	payload := event.Data
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	env := map[string]interface{}{
		"eventId":    event.ID,
		"eventType":  event.Type,
		"receivedAt": event.ReceivedAt.UTC(),
		"payload":    payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &nats.Msg{
		Subject: Subject(prefix, event.Type),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{string(event.Type)},
			"Event-ID":   []string{event.ID},
		},
	}, nil
}
