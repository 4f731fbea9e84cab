package devserver

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/convo/internal/cable"
)

const (
	writeWait   = 10 * time.Second
	sendBufSize = 128

	// closeWriteFailed is sent when a frame cannot be written. 1006 is
	// reserved for the local side and never goes on the wire.
	closeWriteFailed = websocket.CloseInternalServerErr
)

// connection wraps a websocket and serialises outbound frames through a
// buffered channel. A slow reader whose buffer fills is disconnected.
type connection struct {
	id     string
	userID int64

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func newConnection(userID int64, ws *websocket.Conn) *connection {
	return &connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufSize),
		close:  make(chan struct{}),
	}
}

func (c *connection) start(pingEvery time.Duration) {
	go c.writeLoop(pingEvery)
}

func (c *connection) frame(f cable.ServerFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *connection) enqueue(payload []byte) error {
	select {
	case <-c.close:
		return errors.New("connection closed")
	default:
	}
	select {
	case <-c.close:
		return errors.New("connection closed")
	case c.send <- payload:
		return nil
	default:
		c.shutdown(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// shutdown closes the socket. Safe to call more than once.
func (c *connection) shutdown(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *connection) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.shutdown(closeWriteFailed, "write failed")
				return
			}
		case now := <-ticker.C:
			ping, _ := json.Marshal(map[string]any{"type": cable.TypePing, "message": now.Unix()})
			if err := c.write(ping); err != nil {
				c.shutdown(closeWriteFailed, "write failed")
				return
			}
		}
	}
}

func (c *connection) write(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}
