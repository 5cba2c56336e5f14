// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ws carries the realtime chat endpoint: an access gate that
// authenticates the connection before it joins a room, and a hub that
// relays messages and tracks per-room presence.
package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/hubauth/internal/models"
	"codeberg.org/oliverandrich/hubauth/internal/repository"
)

// Event is the envelope for everything sent over a chat connection.
type Event struct {
	Type      string  `json:"type"`
	ID        string  `json:"id,omitempty"`
	Room      string  `json:"room,omitempty"`
	UserID    int64   `json:"user_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Content   string  `json:"content,omitempty"`
	Users     []int64 `json:"users,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

const (
	EventChatMessage = "chat_message"
	EventTyping      = "typing"
	EventOnlineUsers = "online_users"
)

// Hub owns the room registry and fans events out to room members. All
// registry access goes through the run loop.
type Hub struct {
	repo *repository.Repository

	register   chan *Client
	unregister chan *Client
	events     chan roomEvent

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	// connection count per user, for presence across multiple tabs
	online map[int64]int

	done chan struct{}
	once sync.Once
}

type roomEvent struct {
	room  string
	event Event
}

// NewHub creates a hub backed by the given repository for presence rows.
func NewHub(repo *repository.Repository) *Hub {
	return &Hub{
		repo:       repo,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan roomEvent, 64),
		rooms:      make(map[string]map[*Client]struct{}),
		online:     make(map[int64]int),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and events until Shutdown is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case ev := <-h.events:
			h.fanOut(ev.room, ev.event)
		case <-h.done:
			return
		}
	}
}

// Shutdown stops the run loop and closes every client connection.
func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, members := range h.rooms {
		for client := range members {
			close(client.send)
		}
	}
	h.rooms = make(map[string]map[*Client]struct{})
	h.online = make(map[int64]int)
}

// Broadcast queues an event for every member of the room.
func (h *Hub) Broadcast(room string, event Event) {
	select {
	case h.events <- roomEvent{room: room, event: event}:
	case <-h.done:
	}
}

// join hands a client to the run loop. No-op once the hub is shut down.
func (h *Hub) join(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// leave removes a client from the run loop. No-op once the hub is shut
// down; Shutdown has already cleared the registry by then.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// RoomUsers returns the distinct user ids currently present in the room.
func (h *Hub) RoomUsers(room string) []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[int64]struct{})
	ids := make([]int64, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		if _, ok := seen[client.user.ID]; ok {
			continue
		}
		seen[client.user.ID] = struct{}{}
		ids = append(ids, client.user.ID)
	}
	return ids
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	members, ok := h.rooms[client.room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[client.room] = members
	}
	members[client] = struct{}{}
	h.online[client.user.ID]++
	first := h.online[client.user.ID] == 1
	h.mu.Unlock()

	if first {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := h.repo.AddOnlineUser(ctx, client.user.ID); err != nil {
			slog.Error("ws_presence_add_failed", "user_id", client.user.ID, "error", err)
		}
		cancel()
	}

	slog.Info("ws_joined", "user_id", client.user.ID, "room", client.room)
	h.fanOut(client.room, Event{Type: EventOnlineUsers, Room: client.room, Users: h.RoomUsers(client.room)})
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	members, ok := h.rooms[client.room]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, present := members[client]; !present {
		h.mu.Unlock()
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, client.room)
	}
	close(client.send)

	h.online[client.user.ID]--
	last := h.online[client.user.ID] <= 0
	if last {
		delete(h.online, client.user.ID)
	}
	h.mu.Unlock()

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := h.repo.DeleteOnlineUser(ctx, client.user.ID); err != nil {
			slog.Error("ws_presence_remove_failed", "user_id", client.user.ID, "error", err)
		}
		cancel()
	}

	slog.Info("ws_left", "user_id", client.user.ID, "room", client.room)
	h.fanOut(client.room, Event{Type: EventOnlineUsers, Room: client.room, Users: h.RoomUsers(client.room)})
}

func (h *Hub) fanOut(room string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		select {
		case client.send <- event:
		default:
			// Slow consumer; drop the event rather than stall the room.
			slog.Warn("ws_send_dropped", "user_id", client.user.ID, "room", room)
		}
	}
}

// newMessage builds a chat message event from the sender and content.
func newMessage(room string, user *models.User, content string) Event {
	return Event{
		Type:      EventChatMessage,
		ID:        uuid.NewString(),
		Room:      room,
		UserID:    user.ID,
		Name:      user.FullName(),
		Content:   content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
