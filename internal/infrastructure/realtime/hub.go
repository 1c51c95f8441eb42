// Package realtime pushes chat events to websocket clients grouped in rooms.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/inference"
)

const (
	writeWait = 10 * time.Second
	// sendQueueSize bounds the frames buffered per client before it is dropped as too slow.
	sendQueueSize = 64
)

var (
	// ErrClientClosed is returned when sending to a client that has been removed.
	ErrClientClosed = errors.New("websocket client closed")
	// ErrSlowClient is returned when a client's send queue is full.
	ErrSlowClient = errors.New("websocket client send queue full")
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one websocket connection. Frames are queued and written by the client's own
// writer goroutine, the only goroutine that writes to conn.
type Client struct {
	UserID string

	hub       *Hub
	conn      Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	rooms     map[string]struct{} // guarded by Hub.mu
}

// Send queues one frame for this client only.
func (c *Client) Send(event string, payload any) error {
	data, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}
	err = c.enqueue(data)
	if errors.Is(err, ErrSlowClient) {
		c.hub.log.Warn().Str("user_id", c.UserID).Str("event", event).Msg("ws send queue full, dropping connection")
		c.hub.Remove(c)
	}
	return err
}

func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowClient
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.hub.log.Warn().Err(err).Str("user_id", c.UserID).Msg("ws write failed, dropping connection")
				c.hub.Remove(c)
				return
			}
		}
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub tracks which clients are joined to which room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   zerolog.Logger
}

var _ inference.Notifier = (*Hub)(nil)

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		log:   log.With().Str("component", "realtime-hub").Logger(),
	}
}

// Register wraps a connection and starts its writer. The client joins no room until Join
// is called.
func (h *Hub) Register(conn Conn, userID string) *Client {
	c := &Client{
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
	go c.writePump()
	return c
}

// Join adds the client to room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Leave removes the client from room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// Remove drops the client from every room, stops its writer and closes its connection.
// Frames still queued are discarded.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Emit implements inference.Notifier. Frames are queued per client; clients whose queue is
// full are removed from the hub.
func (h *Hub) Emit(ctx context.Context, roomID, event string, payload any) error {
	data, err := encodeFrame(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.enqueue(data); errors.Is(err, ErrSlowClient) {
			h.log.Warn().Str("room", roomID).Str("user_id", c.UserID).Msg("ws send queue full, dropping connection")
			h.Remove(c)
		}
	}
	return nil
}

// RoomSize returns the number of clients joined to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
