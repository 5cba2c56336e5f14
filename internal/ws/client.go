// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ws

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"codeberg.org/oliverandrich/hubauth/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one authenticated connection in one room.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	user *models.User
	room string
	send chan Event
}

func newClient(hub *Hub, conn *websocket.Conn, user *models.User, room string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		user: user,
		room: room,
		send: make(chan Event, 32),
	}
}

// readPump reads inbound events until the connection drops, relaying chat
// messages and typing notifications to the room.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				slog.Error("ws_read_failed", "user_id", c.user.ID, "error", err)
			}
			return
		}

		var inbound Event
		if err := json.Unmarshal(payload, &inbound); err != nil {
			slog.Warn("ws_bad_payload", "user_id", c.user.ID, "error", err)
			continue
		}

		switch inbound.Type {
		case EventChatMessage:
			content := strings.TrimSpace(inbound.Content)
			if content == "" {
				continue
			}
			c.hub.Broadcast(c.room, newMessage(c.room, c.user, content))
		case EventTyping:
			c.hub.Broadcast(c.room, Event{
				Type:   EventTyping,
				Room:   c.room,
				UserID: c.user.ID,
				Name:   c.user.FullName(),
			})
		default:
			slog.Warn("ws_unknown_event", "user_id", c.user.ID, "type", inbound.Type)
		}
	}
}

// writePump serializes queued events to the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
