package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds each write so a stalled client cannot wedge the tick
	// goroutine behind a full send buffer.
	writeWait = 10 * time.Second
	// readWait bounds how long a session stream may sit idle between client
	// actions; ticks flow the other way and do not reset it.
	readWait = 5 * time.Minute
)

// WriteTyped sends one typed event payload within the write deadline.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed error event.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next client action, refreshing the idle deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
