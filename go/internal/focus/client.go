// Package focus wires the reconciliation core together: one backend connection
// feeding the state mirror, the penalty tracker and the execution sequencer.
package focus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus/command"
	"github.com/mcdev12/focusguard/go/internal/focus/countdown"
	"github.com/mcdev12/focusguard/go/internal/focus/escalation"
	"github.com/mcdev12/focusguard/go/internal/focus/gateway"
	"github.com/mcdev12/focusguard/go/internal/focus/mirror"
	"github.com/mcdev12/focusguard/go/internal/focus/pubsub"
	"github.com/mcdev12/focusguard/go/internal/focus/sequencer"
	"github.com/mcdev12/focusguard/go/internal/models"
)

// Config holds configuration for the focus client
type Config struct {
	Connection      gateway.ConnectionConfig
	Sequencer       sequencer.Config
	HistoryCapacity int
	CommandTimeout  time.Duration
	ConfirmTimeout  time.Duration
	// SampleInterval is how often the session countdown is checked for expiry.
	SampleInterval time.Duration
}

// DefaultConfig returns default configuration for the focus client
func DefaultConfig() Config {
	return Config{
		Connection:      gateway.DefaultConnectionConfig(),
		Sequencer:       sequencer.DefaultConfig(),
		HistoryCapacity: mirror.DefaultHistoryCapacity,
		CommandTimeout:  10 * time.Second,
		ConfirmTimeout:  command.DefaultConfirmTimeout,
		SampleInterval:  250 * time.Millisecond,
	}
}

// ExecutionResult is the outcome of one penalty sequence.
type ExecutionResult struct {
	At        time.Time
	Platforms []models.Platform
	Err       error // nil on success, sequencer.ErrNothingToExecute when no platform acted
}

// Client is the reconciliation core. Every inbound push is handled on the connection's
// read goroutine, in delivery order, so the mirror and tracker have a single writer.
type Client struct {
	config Config
	clock  clockwork.Clock

	conn     *gateway.ConnectionManager
	api      *command.Client
	sender   *command.Sender
	toggle   *command.MockToggle
	mirror   *mirror.Mirror
	tracker  *escalation.Tracker
	seq      *sequencer.Sequencer
	watcher  *countdown.ZeroWatcher
	executed *pubsub.Hub[ExecutionResult]
	expired  *pubsub.Hub[string]
	penalty  *pubsub.Hub[escalation.Status]

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.RWMutex
	creds         escalation.Credentials
	lastError     string
	rulesUnsorted bool
}

// New builds a client. Nothing connects until Run.
func New(config Config, clock clockwork.Clock) (*Client, error) {
	conn, err := gateway.NewConnectionManager(config.Connection, clock)
	if err != nil {
		return nil, fmt.Errorf("create connection manager: %w", err)
	}

	api := command.NewClient(config.Connection.ServerURL)
	if config.CommandTimeout > 0 {
		api.SetTimeout(config.CommandTimeout)
	}
	sender := command.NewSender(conn)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config:   config,
		clock:    clock,
		conn:     conn,
		api:      api,
		sender:   sender,
		toggle:   command.NewMockToggle(clock, sender.ToggleMockHardware, config.ConfirmTimeout),
		mirror:   mirror.New(clock, config.HistoryCapacity),
		tracker:  escalation.NewTracker(),
		seq:      sequencer.New(clock, api, config.Sequencer),
		watcher:  countdown.NewZeroWatcher(),
		executed: pubsub.NewHub[ExecutionResult]("executions"),
		expired:  pubsub.NewHub[string]("session_expired"),
		penalty:  pubsub.NewHub[escalation.Status]("penalty"),
		ctx:      ctx,
		cancel:   cancel,
	}

	conn.OnConnect(c.resync)
	conn.Subscribe(gateway.EventSystemState, c.handle)
	conn.Subscribe(gateway.EventHardwareStatus, c.handle)
	conn.Subscribe(gateway.EventHardwareStateChange, c.handle)
	conn.Subscribe(gateway.EventPenaltyLevel, c.handle)
	conn.Subscribe(gateway.EventPenaltyState, c.handle)
	conn.Subscribe(gateway.EventPenaltyTriggered, c.handle)
	conn.Subscribe(gateway.EventError, c.handle)

	return c, nil
}

// Run keeps the connection and the expiry sampler alive until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	log.Info().Str("server", c.config.Connection.ServerURL).Msg("starting focus client")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.conn.Run(ctx); err != nil {
			log.Error().Err(err).Msg("connection manager stopped")
		}
	}()
	go func() {
		defer wg.Done()
		c.sampleLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	c.seq.Close()
	c.cancel()
	log.Info().Msg("focus client stopped")
	return nil
}

// Connection exposes the underlying connection for event taps.
func (c *Client) Connection() *gateway.ConnectionManager {
	return c.conn
}

// SubscribeExecutions reports the outcome of every accepted penalty trigger.
func (c *Client) SubscribeExecutions(fn func(ExecutionResult)) (unsubscribe func()) {
	return c.executed.Subscribe(fn)
}

// SubscribeExpired reports, once per session id, that an active session's countdown hit zero.
func (c *Client) SubscribeExpired(fn func(sessionID string)) (unsubscribe func()) {
	return c.expired.Subscribe(fn)
}

// SubscribePenalty reports every penalty level or detail change.
func (c *Client) SubscribePenalty(fn func(escalation.Status)) (unsubscribe func()) {
	return c.penalty.Subscribe(fn)
}

// SubscribeMirror reports every state or hardware push applied to the mirror.
func (c *Client) SubscribeMirror(fn func(mirror.Snapshot)) (unsubscribe func()) {
	return c.mirror.Subscribe(fn)
}

// SubscribeSequencer reports every penalty animation change.
func (c *Client) SubscribeSequencer(fn func(sequencer.Snapshot)) (unsubscribe func()) {
	return c.seq.Subscribe(fn)
}

// resync runs on every connect, before any pushed event is handled.
func (c *Client) resync(ctx context.Context) error {
	status, err := c.api.FetchHardwareStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetch hardware status: %w", err)
	}
	c.mirror.ApplyHardware(&status)
	c.toggle.Confirm(status)

	if err := c.RefreshCredentials(ctx); err != nil {
		log.Warn().Err(err).Msg("keeping previous platform credentials")
	}
	return nil
}

// RefreshCredentials reloads which platforms have stored credentials.
func (c *Client) RefreshCredentials(ctx context.Context) error {
	creds, err := c.api.FetchCredentials(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
	return nil
}

func (c *Client) credentials() escalation.Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(escalation.Credentials, len(c.creds))
	for p, ok := range c.creds {
		out[p] = ok
	}
	return out
}

// handle applies one server push. Payloads that do not parse are dropped.
func (c *Client) handle(event gateway.ServerEvent) {
	payload, err := gateway.ParseEventPayload(event)
	if err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("dropping malformed server event")
		return
	}

	switch p := payload.(type) {
	case models.SystemState:
		snap := c.mirror.ApplyState(&p)
		c.forgetFinishedSessions(snap)
		c.checkRules(p.PenaltySettings.ProgressiveRules)

	case models.HardwareStatus:
		c.mirror.ApplyHardware(&p)
		c.toggle.Confirm(p)

	case models.HardwareStateChange:
		c.mirror.ApplyTransition(&p)
		log.Info().
			Str("previous", string(p.PreviousState)).
			Str("current", string(p.CurrentState)).
			Msg("hardware state changed")

	case models.PenaltyLevelChange:
		status := c.tracker.ApplyLevel(p)
		c.penalty.Publish(status)

	case models.PenaltyStateDetail:
		status := c.tracker.ApplyDetail(p)
		c.penalty.Publish(status)

	case models.PenaltyTriggered:
		c.trigger(p)

	case gateway.ErrorPayload:
		c.mu.Lock()
		c.lastError = p.Message
		c.mu.Unlock()
		log.Warn().Str("type", p.Type).Str("message", p.Message).Msg("server reported error")
	}
}

// checkRules warns once each time the pushed progressive rules stop being ordered
// by threshold. Resolution still picks the highest matching threshold.
func (c *Client) checkRules(rules []models.ProgressivePenaltyRule) {
	unsorted := !escalation.RulesSorted(rules)

	c.mu.Lock()
	changed := unsorted != c.rulesUnsorted
	c.rulesUnsorted = unsorted
	c.mu.Unlock()

	if changed && unsorted {
		log.Warn().Int("rules", len(rules)).Msg("progressive penalty rules are not ordered by violation count")
	}
}

// trigger starts the penalty sequence for a confirmed trigger. Duplicates while a
// sequence is in progress are suppressed by the sequencer.
func (c *Client) trigger(p models.PenaltyTriggered) {
	snap := c.mirror.Snapshot()

	var settings models.PenaltySettings
	count := p.TodayViolationCount
	if snap.State != nil {
		settings = snap.State.PenaltySettings
		if count == 0 {
			count = snap.State.TodayViolationCount
		}
	}
	if count == 0 {
		count = c.tracker.Snapshot().TodayCount
	}

	platforms := escalation.Resolve(count, settings, c.credentials())
	plan := sequencer.Plan{
		Platforms:  platforms,
		Settings:   settings,
		TodayCount: count,
	}
	if p.Timestamp != nil {
		plan.At = p.Timestamp.Time
	}

	result, ok := c.seq.Trigger(c.ctx, plan)
	if !ok {
		return
	}

	log.Info().
		Int("today_count", count).
		Int("platforms", len(platforms)).
		Msg("penalty triggered")

	go func() {
		err := <-result
		c.executed.Publish(ExecutionResult{At: c.clock.Now(), Platforms: platforms, Err: err})
	}()
}

func (c *Client) forgetFinishedSessions(snap mirror.Snapshot) {
	keep := ""
	if snap.State != nil && snap.State.Session != nil {
		keep = snap.State.Session.ID
	}
	c.watcher.Forget(keep)
}

// sampleLoop watches the interpolated countdown for its zero crossing.
func (c *Client) sampleLoop(ctx context.Context) {
	interval := c.config.SampleInterval
	if interval <= 0 {
		interval = DefaultConfig().SampleInterval
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.checkExpiry()
		}
	}
}

func (c *Client) checkExpiry() {
	snap := c.mirror.Snapshot()
	if snap.State == nil || snap.State.Session == nil {
		return
	}
	session := snap.State.Session
	reading := countdown.Compute(countdown.FromSession(session), c.clock.Now())
	if c.watcher.Observe(session.ID, session.Status, reading) {
		log.Info().Str("session_id", session.ID).Msg("session countdown reached zero")
		c.expired.Publish(session.ID)
	}
}
