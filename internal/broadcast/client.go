package broadcast

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const maxMessageSize = 512

// subscribeRequest is the message a dashboard client sends to join or leave
// a vehicle's topic.
type subscribeRequest struct {
	Event     string `json:"event"`
	VehicleID string `json:"vehicleId"`
}

// Client is a single websocket connection. Messages are fanned in through
// the buffered send channel so the hub never writes to the socket directly.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// HandleConnection registers an upgraded websocket connection with the hub
// and starts its read and write pumps.
func (h *Hub) HandleConnection(conn *websocket.Conn) {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump consumes subscribe/unsubscribe messages until the connection
// drops, then detaches the client from all of its topics.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	pongWait := c.hub.cfg.PongWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).Debug("Websocket read failed")
			}
			return
		}

		var req subscribeRequest
		if err := json.Unmarshal(message, &req); err != nil || req.VehicleID == "" {
			continue
		}

		switch req.Event {
		case "subscribe":
			c.hub.subscribe <- subscription{client: c, vehicleID: req.VehicleID}
		case "unsubscribe":
			c.hub.unsubscribe <- subscription{client: c, vehicleID: req.VehicleID}
		}
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	writeWait := c.hub.cfg.WriteWait
	pingPeriod := c.hub.cfg.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
