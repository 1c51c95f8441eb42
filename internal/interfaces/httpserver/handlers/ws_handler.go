package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/infrastructure/realtime"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

// Websocket event names.
const (
	EventJoin       = "join"
	EventJoined     = "joined"
	EventChat       = "chat_message"
	EventMessageAck = "message_ack"
	EventError      = "error"
)

const maxFrameBytes = 64 << 10

type joinPayload struct {
	ConversationID string `json:"conversationId"`
}

type chatPayload struct {
	ConversationID string          `json:"conversationId"`
	Content        json.RawMessage `json:"content"`
	TempID         string          `json:"tempId"`
}

// MessageAck confirms a chat_message and names the stored message.
type MessageAck struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	TempID         string `json:"tempId,omitempty"`
}

// ErrorFrame reports a rejected websocket event to its sender.
type ErrorFrame struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	TempID  string `json:"tempId,omitempty"`
}

// FrameConn is the part of *websocket.Conn a socket session reads from and writes to.
type FrameConn interface {
	realtime.Conn
	ReadJSON(v any) error
	SetReadLimit(limit int64)
}

// WSHandler runs websocket sessions: clients join conversation rooms to receive streamed
// replies and may submit turns over the socket.
type WSHandler struct {
	hub   *realtime.Hub
	chats *ChatHandler
	turns TurnSubmitter
	log   zerolog.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(hub *realtime.Hub, chats *ChatHandler, turns TurnSubmitter, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:   hub,
		chats: chats,
		turns: turns,
		log:   log.With().Str("component", "ws-handler").Logger(),
	}
}

// Serve reads frames until the connection closes. The connection is closed on return.
func (h *WSHandler) Serve(ctx context.Context, conn FrameConn, principal user.Principal) {
	client := h.hub.Register(conn, principal.UserID)
	defer h.hub.Remove(client)

	conn.SetReadLimit(maxFrameBytes)
	for {
		var frame realtime.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch frame.Event {
		case EventJoin:
			h.join(ctx, client, principal, frame.Data)
		case EventChat:
			h.chat(ctx, client, principal, frame.Data)
		default:
			h.reject(client, frame.Event, "", errors.New("unknown event"))
		}
	}
}

func (h *WSHandler) join(ctx context.Context, client *realtime.Client, principal user.Principal, data json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == "" {
		h.reject(client, EventJoin, "", errors.New("conversationId is required"))
		return
	}
	if err := h.chats.Authorize(ctx, principal, payload.ConversationID); err != nil {
		h.reject(client, EventJoin, "", err)
		return
	}
	h.hub.Join(client, payload.ConversationID)
	_ = client.Send(EventJoined, payload)
}

func (h *WSHandler) chat(ctx context.Context, client *realtime.Client, principal user.Principal, data json.RawMessage) {
	var payload chatPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		h.reject(client, EventChat, "", errors.New("invalid chat_message payload"))
		return
	}
	content, err := chat.NormalizeContent(payload.Content)
	if err != nil {
		h.reject(client, EventChat, payload.TempID, err)
		return
	}

	envelope, err := h.turns.SubmitTurn(ctx, principal, inference.SubmitInput{
		ConversationID: payload.ConversationID,
		Content:        content,
	})
	if err != nil {
		h.reject(client, EventChat, payload.TempID, err)
		return
	}

	h.hub.Join(client, envelope.ConversationID)
	_ = client.Send(EventMessageAck, MessageAck{
		ConversationID: envelope.ConversationID,
		MessageID:      envelope.ID,
		TempID:         payload.TempID,
	})
}

func (h *WSHandler) reject(client *realtime.Client, event, tempID string, err error) {
	message := err.Error()
	if pe := platformerrors.GetPlatformError(err); pe != nil {
		message = pe.Message
	}
	_ = client.Send(EventError, ErrorFrame{Event: event, Message: message, TempID: tempID})
}
