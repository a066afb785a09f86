package view

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// StreamConfig holds configuration for renderer WebSocket connections
type StreamConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
	// RefreshInterval re-sends the view even without a state change, so countdowns keep moving.
	RefreshInterval time.Duration
	CheckOrigin     func(r *http.Request) bool
}

// DefaultStreamConfig returns default renderer stream configuration
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		SendBufferSize:  16,
		RefreshInterval: time.Second,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Broadcaster pushes the current view to every connected renderer whenever
// Notify is called, coalescing bursts into one send.
type Broadcaster struct {
	state    StateProvider
	clock    clockwork.Clock
	config   StreamConfig
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	watchers map[*watcher]bool

	notify chan struct{}
}

type watcher struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	b           *Broadcaster
	connectedAt time.Time
	closeOnce   sync.Once
}

// NewBroadcaster creates a broadcaster sampling state.
func NewBroadcaster(state StateProvider, clock clockwork.Clock, config StreamConfig) *Broadcaster {
	defaults := DefaultStreamConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = defaults.SendBufferSize
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}

	return &Broadcaster{
		state:  state,
		clock:  clock,
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
		watchers: make(map[*watcher]bool),
		notify:   make(chan struct{}, 1),
	}
}

// Notify schedules a broadcast. It never blocks.
func (b *Broadcaster) Notify() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Run sends the view on every notification and refresh tick until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	log.Info().Msg("view broadcaster started")

	var tick <-chan time.Time
	if b.config.RefreshInterval > 0 {
		ticker := b.clock.NewTicker(b.config.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			log.Info().Msg("view broadcaster shutting down")
			return
		case <-b.notify:
			b.broadcast()
		case <-tick:
			b.broadcast()
		}
	}
}

// HandleWatch upgrades GET /ws and starts streaming views to the caller.
func (b *Broadcaster) HandleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade renderer connection")
		return
	}

	wt := &watcher{
		id:          uuid.New().String(),
		conn:        conn,
		send:        make(chan []byte, b.config.SendBufferSize),
		b:           b,
		connectedAt: b.clock.Now(),
	}
	b.register(wt)

	go wt.writePump()
	go wt.readPump()

	// New watchers get the current view straight away.
	if data, err := json.Marshal(b.state.View()); err == nil {
		wt.enqueue(data)
	}

	log.Info().Str("watcher_id", wt.id).Msg("renderer connected")
}

// Count returns the number of connected renderers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.watchers)
}

func (b *Broadcaster) register(wt *watcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers[wt] = true
}

func (b *Broadcaster) unregister(wt *watcher) {
	b.mu.Lock()
	_, ok := b.watchers[wt]
	delete(b.watchers, wt)
	b.mu.Unlock()

	if ok {
		wt.closeOnce.Do(func() { close(wt.send) })
		log.Info().Str("watcher_id", wt.id).Msg("renderer disconnected")
	}
}

func (b *Broadcaster) broadcast() {
	b.mu.RLock()
	if len(b.watchers) == 0 {
		b.mu.RUnlock()
		return
	}
	targets := make([]*watcher, 0, len(b.watchers))
	for wt := range b.watchers {
		targets = append(targets, wt)
	}
	b.mu.RUnlock()

	data, err := json.Marshal(b.state.View())
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal view for broadcast")
		return
	}

	for _, wt := range targets {
		wt.enqueue(data)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.RLock()
	targets := make([]*watcher, 0, len(b.watchers))
	for wt := range b.watchers {
		targets = append(targets, wt)
	}
	b.mu.RUnlock()

	for _, wt := range targets {
		b.unregister(wt)
	}
}

// enqueue drops the watcher when its buffer is full.
func (wt *watcher) enqueue(data []byte) {
	wt.b.mu.RLock()
	live := wt.b.watchers[wt]
	if live {
		select {
		case wt.send <- data:
			wt.b.mu.RUnlock()
			return
		default:
		}
	}
	wt.b.mu.RUnlock()

	if live {
		log.Warn().Str("watcher_id", wt.id).Msg("renderer send buffer full, closing connection")
		wt.b.unregister(wt)
		wt.conn.Close()
	}
}

func (wt *watcher) writePump() {
	ticker := wt.b.clock.NewTicker(wt.b.config.PingInterval)
	defer func() {
		ticker.Stop()
		wt.conn.Close()
		wt.b.unregister(wt)
	}()

	for {
		select {
		case message, ok := <-wt.send:
			_ = wt.conn.SetWriteDeadline(time.Now().Add(wt.b.config.WriteTimeout))
			if !ok {
				_ = wt.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wt.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("watcher_id", wt.id).Msg("failed to write view")
				return
			}

		case <-ticker.Chan():
			_ = wt.conn.SetWriteDeadline(time.Now().Add(wt.b.config.WriteTimeout))
			if err := wt.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the deadline fresh; renderers send commands over HTTP.
func (wt *watcher) readPump() {
	defer func() {
		wt.b.unregister(wt)
		wt.conn.Close()
	}()

	wt.conn.SetReadLimit(wt.b.config.MaxMessageSize)
	_ = wt.conn.SetReadDeadline(time.Now().Add(wt.b.config.ReadTimeout))
	wt.conn.SetPongHandler(func(string) error {
		return wt.conn.SetReadDeadline(time.Now().Add(wt.b.config.ReadTimeout))
	})

	for {
		if _, _, err := wt.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("watcher_id", wt.id).Msg("unexpected renderer close")
			}
			return
		}
		_ = wt.conn.SetReadDeadline(time.Now().Add(wt.b.config.ReadTimeout))
	}
}
