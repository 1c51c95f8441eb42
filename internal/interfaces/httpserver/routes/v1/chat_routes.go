package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/janhq/evaluator-server/internal/domain/chat"
	"github.com/janhq/evaluator-server/internal/domain/user"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/handlers"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/requests"
	"github.com/janhq/evaluator-server/internal/interfaces/httpserver/responses"
	"github.com/janhq/evaluator-server/internal/utils/platformerrors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browsers connect from the web client origin; the token check authenticates the socket.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterChatRoutes registers the conversation, message and websocket routes.
func RegisterChatRoutes(router gin.IRoutes, handler *handlers.ChatHandler, ws *handlers.WSHandler) {
	router.POST("/chat/message", sendMessage(handler))
	router.PATCH("/chat/message/:id/evaluate", evaluateMessage(handler))
	router.GET("/chat/message/:id", getMessage(handler))

	router.GET("/chat/history", listHistory(handler))
	router.GET("/chat/sidebar", listSidebar(handler))
	router.GET("/chat/conversation/:id", getConversation(handler))
	router.GET("/chat/conversation/:id/messages", listConversationMessages(handler))

	router.GET("/chat/ws", serveWebsocket(ws))
}

// sendMessage godoc
// @Summary      Send a chat message
// @Description  Stores a message. User messages start a new conversation when conversationId is empty and are dispatched for inference; the reply streams over the websocket.
// @Tags         Chat API
// @Accept       json
// @Produce      json
// @Param        request body requests.SendMessageRequest true "Message"
// @Success      201 {object} chat.MessageEnvelope
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      502 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/message [post]
func sendMessage(handler *handlers.ChatHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requests.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error())
			return
		}
		content, err := chat.NormalizeContent(req.Content)
		if err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, err.Error())
			return
		}

		envelope, err := handler.SendMessage(c.Request.Context(), principal(c), handlers.SendMessageInput{
			ConversationID: req.ConversationID,
			Sender:         chat.Sender(req.Sender),
			Content:        content,
		})
		if err != nil {
			responses.HandleError(c, err, "failed to send message")
			return
		}

		c.JSON(http.StatusCreated, envelope)
	}
}

// evaluateMessage godoc
// @Summary      Evaluate a message
// @Description  Stores a 1-5 rating and an optional comment on a message. Returns null when the message does not exist.
// @Tags         Chat API
// @Accept       json
// @Produce      json
// @Param        id path string true "Message ID"
// @Param        request body requests.EvaluateMessageRequest true "Evaluation"
// @Success      200 {object} chat.MessageEnvelope
// @Failure      400 {object} responses.ErrorResponse
// @Failure      401 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/message/{id}/evaluate [patch]
func evaluateMessage(handler *handlers.ChatHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requests.EvaluateMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "rating must be an integer between 1 and 5")
			return
		}

		envelope, err := handler.EvaluateMessage(c.Request.Context(), principal(c), c.Param("id"), chat.Evaluation{
			Rating:  req.Rating,
			Comment: req.EvaluationComment,
		})
		if err != nil {
			responses.HandleError(c, err, "failed to evaluate message")
			return
		}

		c.JSON(http.StatusOK, envelope)
	}
}

// getMessage godoc
// @Summary      Get a message
// @Tags         Chat API
// @Produce      json
// @Param        id path string true "Message ID"
// @Success      200 {object} chat.MessageEnvelope
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/message/{id} [get]
func getMessage(handler *handlers.ChatHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		envelope, err := handler.GetMessage(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "message not found")
			return
		}
		c.JSON(http.StatusOK, envelope)
	}
}

// listHistory godoc
// @Summary      List conversations
// @Description  Lists the caller's conversations with their messages, most recently updated first.
// @Tags         Chat API
// @Produce      json
// @Success      200 {array} chat.ConversationView
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/history [get]
func listHistory(handler *handlers.ChatHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := handler.History(c.Request.Context(), principal(c))
		if err != nil {
			responses.HandleError(c, err, "failed to list conversations")
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

// listSidebar godoc
// @Summary      List sidebar entries
// @Description  Lists the caller's conversations with only their latest message as preview.
// @Tags         Chat API
// @Produce      json
// @Success      200 {array} chat.SidebarEntry
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/sidebar [get]
func listSidebar(handler *handlers.ChatHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := handler.Sidebar(c.Request.Context(), principal(c))
		if err != nil {
			responses.HandleError(c, err, "failed to load sidebar")
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// getConversation godoc
// @Summary      Get a conversation
// @Tags         Chat API
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} chat.ConversationView
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/conversation/{id} [get]
func getConversation(handler *handlers.ChatHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := handler.Conversation(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "conversation not found")
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// listConversationMessages godoc
// @Summary      List conversation messages
// @Description  Lists the messages of a conversation oldest first.
// @Tags         Chat API
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {array} chat.MessageEnvelope
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/conversation/{id}/messages [get]
func listConversationMessages(handler *handlers.ChatHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		messages, err := handler.ConversationMessages(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "conversation not found")
			return
		}
		c.JSON(http.StatusOK, messages)
	}
}

// serveWebsocket godoc
// @Summary      Chat websocket
// @Description  Upgrades to a websocket. Send {"event":"join","data":{"conversationId"}} to receive chunk_received events for a conversation, or {"event":"chat_message","data":{"conversationId","content","tempId"}} to submit a turn.
// @Tags         Chat API
// @Param        token query string false "Access token when the Authorization header cannot be set"
// @Success      101
// @Failure      401 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /chat/ws [get]
func serveWebsocket(ws *handlers.WSHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principal(c)
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			return
		}
		ws.Serve(c.Request.Context(), conn, p)
	}
}

func principal(c *gin.Context) user.Principal {
	p, _ := middlewares.PrincipalFromContext(c)
	return p
}
