package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// payloadSeparator joins packets in one long-polling response or request body.
const payloadSeparator = 0x1e

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// openPacket is the Engine.IO handshake sent by the server right after the upgrade.
type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// liveness is how long the server may stay silent before the connection is considered dead.
func (o openPacket) liveness() time.Duration {
	return time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
}

// packet is a decoded frame.
type packet struct {
	eio  byte
	sio  byte
	name string
	data json.RawMessage
}

func decodePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, fmt.Errorf("empty frame")
	}
	p := packet{eio: frame[0]}
	if p.eio != eioMessage {
		p.data = frame[1:]
		return p, nil
	}

	body := frame[1:]
	if len(body) == 0 {
		return packet{}, fmt.Errorf("message frame without socket packet")
	}
	p.sio = body[0]
	body = body[1:]

	// Namespaced packets look like "/ns,payload"; only the default namespace is used.
	if len(body) > 0 && body[0] == '/' {
		if i := strings.IndexByte(string(body), ','); i >= 0 {
			body = body[i+1:]
		} else {
			body = nil
		}
	}
	// Ack ids precede the payload and are not used by this client.
	for len(body) > 0 && body[0] >= '0' && body[0] <= '9' {
		body = body[1:]
	}

	if p.sio != sioEvent {
		p.data = body
		return p, nil
	}

	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return packet{}, fmt.Errorf("decode event arguments: %w", err)
	}
	if len(args) == 0 {
		return packet{}, fmt.Errorf("event packet without name")
	}
	if err := json.Unmarshal(args[0], &p.name); err != nil {
		return packet{}, fmt.Errorf("decode event name: %w", err)
	}
	if len(args) > 1 {
		p.data = args[1]
	}
	return p, nil
}

// decodePayload splits a long-polling body into its packets, skipping any that
// do not decode.
func decodePayload(body []byte) []packet {
	var out []packet
	for _, frame := range bytes.Split(body, []byte{payloadSeparator}) {
		if len(frame) == 0 {
			continue
		}
		p, err := decodePacket(frame)
		if err != nil {
			log.Debug().Err(err).Msg("skipping undecodable polling packet")
			continue
		}
		out = append(out, p)
	}
	return out
}

func encodeEvent(name string, data interface{}) ([]byte, error) {
	args := []interface{}{name}
	if data != nil {
		args = append(args, data)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", name, err)
	}
	return append([]byte{eioMessage, sioEvent}, body...), nil
}

// socketURL turns an http(s) base URL and a socket path into the websocket endpoint.
func socketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if path == "" {
		path = "/socket.io/"
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pollingURL derives the long-polling endpoint from the websocket endpoint.
func pollingURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	q := u.Query()
	q.Set("transport", "polling")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// withSID binds an endpoint to an Engine.IO session.
func withSID(endpoint, sid string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	q.Set("sid", sid)
	u.RawQuery = q.Encode()
	return u.String()
}
