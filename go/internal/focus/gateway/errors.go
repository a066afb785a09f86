package gateway

import "errors"

var (
	// ErrNotConnected is returned by Emit while no connection is established.
	ErrNotConnected = errors.New("not connected to server")
	// ErrSendBufferFull is returned by Emit when the outbound queue is saturated.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrHandshake wraps a failed Engine.IO or Socket.IO handshake.
	ErrHandshake = errors.New("socket handshake failed")
)
