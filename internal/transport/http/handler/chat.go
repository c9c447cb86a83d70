package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docuchat/internal/app"
	"docuchat/internal/model"
	"docuchat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ConverseRequest struct {
	DocumentID uint              `json:"documentId" binding:"required,gt=0"`
	Messages   model.MessageList `json:"messages" binding:"required"`
}

type SaveTurnRequest struct {
	DocumentID uint              `json:"documentId" binding:"required,gt=0"`
	Messages   model.MessageList `json:"messages" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Converse relays the model's token stream to the client as SSE frames.
// Client disconnects cancel the request context, which stops token
// consumption upstream; nothing is persisted for an aborted stream.
func (h *ChatHandler) Converse(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ConverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	// SSE headers go out with the first chunk, so errors raised before
	// any output keep a plain JSON response.
	setStreamHeaders := func() {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
	}

	started := false
	full, err := h.chatService.Converse(c.Request.Context(), app.ConverseInput{
		UserID:     userID,
		DocumentID: req.DocumentID,
		Messages:   req.Messages,
	}, func(chunk string) error {
		if !started {
			setStreamHeaders()
			started = true
		}
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Before the first chunk the response is still unwritten, so the
		// client gets a proper status. After that only an SSE error frame
		// can be sent.
		if !started {
			switch {
			case errors.Is(err, app.ErrInvalidInput):
				response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			case errors.Is(err, app.ErrDocumentNotFound):
				response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, app.ErrDocumentNotFound.Error())
			case errors.Is(err, app.ErrNoContent):
				response.Error(c, http.StatusUnprocessableEntity, response.CodeUnprocessable, app.ErrNoContent.Error())
			default:
				response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat failed")
			}
			return
		}
		if _, writeErr := c.Writer.Write([]byte(fmt.Sprintf("event: error\ndata: %s\n\n", sanitizeSSE("stream interrupted")))); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	if !started {
		setStreamHeaders()
	}
	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(full) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

// SaveTurn persists the full message list for a document's chat.
func (h *ChatHandler) SaveTurn(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SaveTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	err := h.chatService.PersistTurn(c.Request.Context(), app.PersistTurnInput{
		UserID:     userID,
		DocumentID: req.DocumentID,
		Messages:   req.Messages,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, app.ErrDocumentNotFound.Error())
		case errors.Is(err, app.ErrTurnEnqueue):
			response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "save chat failed")
		}
		return
	}

	response.OK(c, gin.H{"saved_document_id": req.DocumentID})
}

// GetChat returns the persisted chat for a document.
func (h *ChatHandler) GetChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	documentID64, err := strconv.ParseUint(c.Query("document_id"), 10, 64)
	if err != nil || documentID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document_id")
		return
	}

	chat, err := h.chatService.GetChat(userID, uint(documentID64))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, app.ErrDocumentNotFound.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get chat failed")
		}
		return
	}
	response.OK(c, chat)
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
