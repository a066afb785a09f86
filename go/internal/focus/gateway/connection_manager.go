// Package gateway maintains the single persistent Socket.IO connection to the focus
// backend and fans its pushes out to typed subscribers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus/pubsub"
)

// ConnectionConfig holds configuration for the server connection
type ConnectionConfig struct {
	ServerURL  string
	SocketPath string

	// ReconnectAttempts failed attempts are retried every ReconnectDelay. After that,
	// one attempt is made per ManualReconnectDelay until a connect succeeds.
	ReconnectAttempts    int
	ReconnectDelay       time.Duration
	ManualReconnectDelay time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration // used until the server announces its ping interval
	MaxMessageSize   int64
	SendBufferSize   int

	// UpgradeInterval is how often a long-polling session checks whether the
	// websocket endpoint has become reachable.
	UpgradeInterval time.Duration
}

// DefaultConnectionConfig returns default connection configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		ServerURL:            "http://localhost:8000",
		SocketPath:           "/socket.io/",
		ReconnectAttempts:    5,
		ReconnectDelay:       time.Second,
		ManualReconnectDelay: 10 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReadTimeout:          60 * time.Second,
		MaxMessageSize:       1 << 20, // state snapshots carry penalty settings and sensor samples
		SendBufferSize:       256,
		UpgradeInterval:      30 * time.Second,
	}
}

// ConnectHook runs once per established connection, before any pushed event is delivered.
type ConnectHook func(ctx context.Context) error

// ConnectionManager owns one logical connection to the backend. It reconnects on its
// own, reports connectivity as a flag and never returns transport errors to callers
// other than Emit.
type ConnectionManager struct {
	config   ConnectionConfig
	clock    clockwork.Clock
	dialer   *websocket.Dialer
	http     *http.Client
	endpoint string
	polling  string

	mu          sync.RWMutex
	session     *session
	hooks       []ConnectHook
	typed       map[EventType]*pubsub.Hub[ServerEvent]
	connects    int
	lastConnect time.Time

	events *pubsub.Hub[ServerEvent]
	status *pubsub.Hub[bool]
}

// session is one established Socket.IO connection over either transport.
type session struct {
	id   string
	sid  string
	t    transport
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.t.close()
	})
}

// NewConnectionManager creates a connection manager. Nothing is dialed until Run.
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) (*ConnectionManager, error) {
	endpoint, err := socketURL(config.ServerURL, config.SocketPath)
	if err != nil {
		return nil, err
	}
	polling, err := pollingURL(endpoint)
	if err != nil {
		return nil, err
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 1
	}
	if config.ReconnectAttempts <= 0 {
		config.ReconnectAttempts = 1
	}

	return &ConnectionManager{
		config: config,
		clock:  clock,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		http: &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyFromEnvironment},
		},
		endpoint: endpoint,
		polling:  polling,
		typed:    make(map[EventType]*pubsub.Hub[ServerEvent]),
		events:   pubsub.NewHub[ServerEvent]("gateway.events"),
		status:   pubsub.NewHub[bool]("gateway.status"),
	}, nil
}

// OnConnect registers a hook that runs on every connect and reconnect.
func (cm *ConnectionManager) OnConnect(hook ConnectHook) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.hooks = append(cm.hooks, hook)
}

// Subscribe delivers every push of type t to fn, in arrival order.
func (cm *ConnectionManager) Subscribe(t EventType, fn func(ServerEvent)) (unsubscribe func()) {
	cm.mu.Lock()
	hub, ok := cm.typed[t]
	if !ok {
		hub = pubsub.NewHub[ServerEvent]("gateway." + string(t))
		cm.typed[t] = hub
	}
	cm.mu.Unlock()
	return hub.Subscribe(fn)
}

// SubscribeAll delivers every push to fn, including event types this package does not know.
func (cm *ConnectionManager) SubscribeAll(fn func(ServerEvent)) (unsubscribe func()) {
	return cm.events.Subscribe(fn)
}

// SubscribeStatus reports every connectivity change.
func (cm *ConnectionManager) SubscribeStatus(fn func(connected bool)) (unsubscribe func()) {
	return cm.status.Subscribe(fn)
}

// Connected reports whether a connection is currently established.
func (cm *ConnectionManager) Connected() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.session != nil
}

// Emit queues a named event for the server without waiting for any acknowledgement.
func (cm *ConnectionManager) Emit(name string, data interface{}) error {
	frame, err := encodeEvent(name, data)
	if err != nil {
		return err
	}

	cm.mu.RLock()
	sess := cm.session
	cm.mu.RUnlock()
	if sess == nil {
		log.Warn().Str("event", name).Msg("emit while disconnected, dropping event")
		return ErrNotConnected
	}

	select {
	case <-sess.done:
		return ErrNotConnected
	default:
	}

	select {
	case sess.send <- frame:
		log.Debug().Str("event", name).Str("connection_id", sess.id).Msg("event emitted")
		return nil
	default:
		log.Warn().Str("event", name).Str("connection_id", sess.id).Msg("send buffer full, dropping event")
		return ErrSendBufferFull
	}
}

// Run connects and keeps the connection alive until ctx is cancelled.
func (cm *ConnectionManager) Run(ctx context.Context) error {
	log.Info().Str("endpoint", cm.endpoint).Msg("connection manager started")

	failures := 0
	for {
		established, err := cm.connectAndServe(ctx)
		if ctx.Err() != nil {
			log.Info().Msg("connection manager shutting down")
			return nil
		}

		delay := cm.config.ReconnectDelay
		if established {
			failures = 0
		} else {
			failures++
			log.Warn().
				Err(err).
				Int("attempt", failures).
				Int("max_attempts", cm.config.ReconnectAttempts).
				Msg("connection attempt failed")
			if failures >= cm.config.ReconnectAttempts {
				delay = cm.config.ManualReconnectDelay
				log.Error().
					Dur("cooldown", delay).
					Msg("reconnect attempts exhausted, scheduling manual reconnect")
			}
		}

		if !cm.sleep(ctx, delay) {
			log.Info().Msg("connection manager shutting down")
			return nil
		}
	}
}

// Stats returns a summary of the connection for diagnostics.
func (cm *ConnectionManager) Stats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := map[string]interface{}{
		"connected": cm.session != nil,
		"connects":  cm.connects,
		"endpoint":  cm.endpoint,
	}
	if cm.session != nil {
		stats["sid"] = cm.session.sid
		stats["transport"] = cm.session.t.name()
		stats["connected_at"] = cm.lastConnect
	}
	return stats
}

// connectAndServe runs one connection to completion. established reports whether the
// handshake succeeded, in which case err is nil.
func (cm *ConnectionManager) connectAndServe(ctx context.Context) (established bool, err error) {
	t, open, sid, pending, err := cm.dial(ctx)
	if err != nil {
		return false, err
	}

	sess := &session{
		id:   uuid.New().String(),
		sid:  sid,
		t:    t,
		send: make(chan []byte, cm.config.SendBufferSize),
		done: make(chan struct{}),
	}

	cm.mu.Lock()
	cm.session = sess
	cm.connects++
	cm.lastConnect = cm.clock.Now()
	hooks := make([]ConnectHook, len(cm.hooks))
	copy(hooks, cm.hooks)
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", sess.id).
		Str("sid", sid).
		Str("transport", t.name()).
		Msg("connected to server")

	go func() {
		select {
		case <-ctx.Done():
			sess.close()
		case <-sess.done:
		}
	}()
	go cm.writePump(sess)
	if t.name() == transportPolling && slices.Contains(open.Upgrades, transportWebsocket) {
		go cm.watchUpgrade(ctx, sess)
	}

	cm.status.Publish(true)
	for _, hook := range hooks {
		cm.runHook(ctx, hook)
	}
	for _, p := range pending {
		cm.dispatch(p)
	}

	cm.readPump(sess, open)

	cm.mu.Lock()
	if cm.session == sess {
		cm.session = nil
	}
	cm.mu.Unlock()
	sess.close()

	log.Info().Str("connection_id", sess.id).Msg("disconnected from server")
	cm.status.Publish(false)
	return true, nil
}

// dial connects over websocket, falling back to long-polling when the websocket
// endpoint cannot be reached, and completes the Socket.IO handshake. Events that
// arrive before the namespace is acknowledged are returned in pending.
func (cm *ConnectionManager) dial(ctx context.Context) (transport, openPacket, string, []packet, error) {
	t, open, err := cm.openWebsocket(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("websocket unavailable, trying long-polling")
		var pollErr error
		t, open, pollErr = cm.openPolling(ctx)
		if pollErr != nil {
			return nil, openPacket{}, "", nil, errors.Join(err, pollErr)
		}
	}

	sid, pending, err := cm.joinNamespace(t)
	if err != nil {
		t.close()
		return nil, openPacket{}, "", nil, err
	}
	return t, open, sid, pending, nil
}

// openWebsocket dials the websocket endpoint and reads the Engine.IO open packet.
func (cm *ConnectionManager) openWebsocket(ctx context.Context) (transport, openPacket, error) {
	conn, resp, err := cm.dialer.DialContext(ctx, cm.endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, openPacket{}, fmt.Errorf("dial %s: %s: %w", cm.endpoint, resp.Status, err)
		}
		return nil, openPacket{}, fmt.Errorf("dial %s: %w", cm.endpoint, err)
	}
	if cm.config.MaxMessageSize > 0 {
		conn.SetReadLimit(cm.config.MaxMessageSize)
	}

	t := &wsTransport{conn: conn, writeTimeout: cm.config.WriteTimeout}
	open, err := cm.readOpen(t)
	if err != nil {
		t.close()
		return nil, openPacket{}, err
	}
	return t, open, nil
}

// openPolling starts a long-polling session; the first GET answers with the open packet.
func (cm *ConnectionManager) openPolling(ctx context.Context) (transport, openPacket, error) {
	t := newPollingTransport(cm.http, cm.polling, cm.config.WriteTimeout, cm.config.MaxMessageSize)

	stop := context.AfterFunc(ctx, t.cancel)
	defer stop()

	open, err := cm.readOpen(t)
	if err != nil {
		t.cancel()
		return nil, openPacket{}, err
	}
	t.bind(open.SID)
	return t, open, nil
}

func (cm *ConnectionManager) readOpen(t transport) (openPacket, error) {
	var open openPacket

	p, err := t.read(cm.config.HandshakeTimeout)
	if err != nil {
		return open, fmt.Errorf("%w: read open packet: %v", ErrHandshake, err)
	}
	if p.eio != eioOpen {
		return open, fmt.Errorf("%w: expected open packet, got %q", ErrHandshake, p.eio)
	}
	if err := json.Unmarshal(p.data, &open); err != nil {
		return open, fmt.Errorf("%w: decode open packet: %v", ErrHandshake, err)
	}
	return open, nil
}

// joinNamespace connects the default namespace and waits for its acknowledgement.
func (cm *ConnectionManager) joinNamespace(t transport) (string, []packet, error) {
	if err := t.write([]byte{eioMessage, sioConnect}); err != nil {
		return "", nil, fmt.Errorf("%w: send namespace connect: %v", ErrHandshake, err)
	}

	var pending []packet
	for {
		p, err := t.read(cm.config.HandshakeTimeout)
		if err != nil {
			return "", nil, fmt.Errorf("%w: await namespace connect: %v", ErrHandshake, err)
		}

		switch {
		case p.eio == eioPing:
			if err := t.write([]byte{eioPong}); err != nil {
				return "", nil, fmt.Errorf("%w: send pong: %v", ErrHandshake, err)
			}
		case p.eio == eioMessage && p.sio == sioConnect:
			var ack struct {
				SID string `json:"sid"`
			}
			_ = json.Unmarshal(p.data, &ack)
			return ack.SID, pending, nil
		case p.eio == eioMessage && p.sio == sioConnectError:
			return "", nil, fmt.Errorf("%w: server refused namespace: %s", ErrHandshake, string(p.data))
		case p.eio == eioMessage && p.sio == sioEvent:
			pending = append(pending, p)
		case p.eio == eioClose:
			return "", nil, fmt.Errorf("%w: server closed during handshake", ErrHandshake)
		}
	}
}

// watchUpgrade ends a long-polling session once the websocket endpoint answers
// again, so the next connect runs over websocket.
func (cm *ConnectionManager) watchUpgrade(ctx context.Context, sess *session) {
	if cm.config.UpgradeInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sess.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for cm.sleep(ctx, cm.config.UpgradeInterval) {
		t, _, err := cm.openWebsocket(ctx)
		if err != nil {
			log.Debug().Err(err).Str("connection_id", sess.id).Msg("websocket still unavailable")
			continue
		}
		t.close()

		log.Info().Str("connection_id", sess.id).Msg("websocket reachable, leaving long-polling")
		sess.close()
		return
	}
}

// readPump reads frames until the connection fails or the server disconnects us.
func (cm *ConnectionManager) readPump(sess *session, open openPacket) {
	liveness := open.liveness()
	if liveness <= 0 {
		liveness = cm.config.ReadTimeout
	}

	for {
		p, err := sess.t.read(liveness)
		if err != nil {
			select {
			case <-sess.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().
						Err(err).
						Str("connection_id", sess.id).
						Msg("unexpected websocket close error")
				} else {
					log.Debug().Err(err).Str("connection_id", sess.id).Msg("read loop ended")
				}
			}
			return
		}

		switch p.eio {
		case eioPing:
			select {
			case sess.send <- []byte{eioPong}:
			default:
				log.Warn().Str("connection_id", sess.id).Msg("send buffer full, dropping pong")
			}
		case eioClose:
			log.Info().Str("connection_id", sess.id).Msg("server closed engine session")
			return
		case eioMessage:
			switch p.sio {
			case sioEvent:
				cm.dispatch(p)
			case sioDisconnect:
				log.Info().Str("connection_id", sess.id).Msg("server disconnected namespace")
				return
			}
		}
	}
}

// writePump is the only writer of the session transport apart from close.
func (cm *ConnectionManager) writePump(sess *session) {
	defer sess.close()

	for {
		select {
		case <-sess.done:
			return
		case frame := <-sess.send:
			if err := sess.t.write(frame); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", sess.id).
					Str("transport", sess.t.name()).
					Msg("failed to write message")
				return
			}
		}
	}
}

func (cm *ConnectionManager) dispatch(p packet) {
	event := ServerEvent{
		ID:         uuid.New().String(),
		Type:       EventType(p.name),
		ReceivedAt: cm.clock.Now(),
		Data:       p.data,
	}

	log.Debug().
		Str("event_id", event.ID).
		Str("event_type", p.name).
		Msg("received server event")

	cm.events.Publish(event)

	cm.mu.RLock()
	hub := cm.typed[event.Type]
	cm.mu.RUnlock()
	if hub != nil {
		hub.Publish(event)
	}
}

func (cm *ConnectionManager) runHook(ctx context.Context, hook ConnectHook) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("connect hook panicked")
		}
	}()
	if err := hook(ctx); err != nil {
		log.Error().Err(err).Msg("connect hook failed")
	}
}

func (cm *ConnectionManager) sleep(ctx context.Context, d time.Duration) bool {
	timer := cm.clock.NewTimer(d)
	defer stopAndDrainTimer(timer)

	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
