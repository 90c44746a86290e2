package matchhub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"peerlink/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192 // SDP offers run long
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID string
	RoomID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan models.Envelope

	closeOnce sync.Once
}

func (c *WebSocketClient) GetUserID() string                      { return c.UserID }
func (c *WebSocketClient) GetRoomID() string                      { return c.RoomID }
func (c *WebSocketClient) SetRoomID(id string)                    { c.RoomID = id }
func (c *WebSocketClient) GetSendChannel() chan<- models.Envelope { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close shuts the send channel, which stops the write pump; the read pump
// stops when the connection closes underneath it. Idempotent: the hub closes
// rejected clients, and the read pump's unregister closes again on teardown.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("error decoding envelope from %s: %v", c.UserID, err)
			continue
		}

		c.Hub.IncomingCh <- InboundMessage{UserID: c.UserID, Env: env}
	}
}

// writeEnvelope sends one envelope as one text frame. The wire protocol is
// one JSON document per message, so drained bursts never share a frame.
func (c *WebSocketClient) writeEnvelope(env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("error encoding envelope for %s: %v", c.UserID, err)
		return nil
	}

	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	w.Write(data)
	return w.Close()
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.writeEnvelope(env); err != nil {
				return
			}

			// Drain whatever else is queued so a burst goes out in one
			// wakeup.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				env, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.writeEnvelope(env); err != nil {
					return
				}
			}

		case <-ticker.C:
			// Keepalive ping.
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
