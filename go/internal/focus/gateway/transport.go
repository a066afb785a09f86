package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	transportWebsocket = "websocket"
	transportPolling   = "polling"
)

// transport carries Engine.IO packets for one session. One goroutine reads and
// one goroutine writes; close may be called from any goroutine.
type transport interface {
	name() string
	// read returns the next packet, failing if none arrives within timeout.
	read(timeout time.Duration) (packet, error)
	write(frame []byte) error
	// bind attaches the transport to the session id from the open packet.
	bind(sid string)
	close()
}

// wsTransport is a websocket connection.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	once         sync.Once
}

func (t *wsTransport) name() string { return transportWebsocket }

func (t *wsTransport) read(timeout time.Duration) (packet, error) {
	t.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		msgType, frame, err := t.conn.ReadMessage()
		if err != nil {
			return packet{}, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		p, err := decodePacket(frame)
		if err != nil {
			log.Debug().Err(err).Msg("skipping undecodable frame")
			continue
		}
		return p, nil
	}
}

func (t *wsTransport) write(frame []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) bind(string) {}

func (t *wsTransport) close() {
	t.once.Do(func() {
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.conn.Close()
	})
}

// pollingTransport is Engine.IO HTTP long-polling: a GET waits for the server's
// packets and each outbound frame is a POST.
type pollingTransport struct {
	client       *http.Client
	endpoint     string
	writeTimeout time.Duration
	maxPayload   int64

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// buffered holds packets from the last GET not yet handed to the reader.
	buffered []packet
}

func newPollingTransport(client *http.Client, endpoint string, writeTimeout time.Duration, maxPayload int64) *pollingTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollingTransport{
		client:       client,
		endpoint:     endpoint,
		writeTimeout: writeTimeout,
		maxPayload:   maxPayload,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (t *pollingTransport) name() string { return transportPolling }

func (t *pollingTransport) read(timeout time.Duration) (packet, error) {
	for len(t.buffered) == 0 {
		if err := t.poll(timeout); err != nil {
			return packet{}, err
		}
	}
	p := t.buffered[0]
	t.buffered = t.buffered[1:]
	return p, nil
}

func (t *pollingTransport) poll(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(t.ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
	if err != nil {
		return fmt.Errorf("create poll request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("poll %s: %w", t.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poll %s: %s", t.endpoint, resp.Status)
	}

	var body io.Reader = resp.Body
	if t.maxPayload > 0 {
		body = io.LimitReader(resp.Body, t.maxPayload)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read poll response: %w", err)
	}

	for _, p := range decodePayload(data) {
		if p.eio == eioNoop {
			continue
		}
		t.buffered = append(t.buffered, p)
	}
	return nil
}

func (t *pollingTransport) write(frame []byte) error {
	ctx, cancel := context.WithTimeout(t.ctx, t.writeTimeout)
	defer cancel()
	return t.post(ctx, frame)
}

func (t *pollingTransport) post(ctx context.Context, frame []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(frame))
	if err != nil {
		return fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", t.endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: %s", t.endpoint, resp.Status)
	}
	return nil
}

func (t *pollingTransport) bind(sid string) {
	t.endpoint = withSID(t.endpoint, sid)
}

// close tells the server the session is over and aborts any pending request.
func (t *pollingTransport) close() {
	t.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = t.post(ctx, []byte{eioClose})
		t.cancel()
	})
}
