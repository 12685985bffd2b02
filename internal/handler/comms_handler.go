package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsehq/comms-gateway/internal/common"
	"github.com/pulsehq/comms-gateway/internal/domain"
	"github.com/pulsehq/comms-gateway/internal/middleware"
	"github.com/pulsehq/comms-gateway/internal/service"
)

// CommsHandler handles conversation and thread HTTP requests
type CommsHandler struct {
	service service.CommsService
}

// NewCommsHandler creates a new CommsHandler
func NewCommsHandler(service service.CommsService) *CommsHandler {
	return &CommsHandler{service: service}
}

func callerFrom(c *gin.Context) (service.Caller, bool) {
	caller := service.Caller{
		UserID:    middleware.GetUserID(c),
		CompanyID: middleware.GetCompanyID(c),
		Token:     middleware.GetBearerToken(c),
	}
	if caller.UserID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return caller, false
	}
	return caller, true
}

// respondServiceError maps service errors to HTTP statuses
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrConversationNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "Conversation not found", err)
	case errors.Is(err, common.ErrThreadNotFound):
		common.ErrorResponse(c, http.StatusNotFound, "Thread not found", err)
	case errors.Is(err, common.ErrRecipientRequired):
		common.ErrorResponse(c, http.StatusBadRequest, "Recipient is required", err)
	case errors.Is(err, common.ErrContentRequired):
		common.ErrorResponse(c, http.StatusBadRequest, "Message content is required", err)
	case errors.Is(err, common.ErrUpstreamUnavailable):
		common.ErrorResponse(c, http.StatusBadGateway, "Message store unavailable", err)
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "Internal error", err)
	}
}

// ListConversations handles GET /conversations
// @Summary List conversations grouped by counterpart, most recent first
// @Tags conversations
// @Produce json
// @Param q query string false "Search query (participant name or message content)"
// @Success 200 {object} common.APIResponse{data=[]domain.Conversation}
// @Router /conversations [get]
func (h *CommsHandler) ListConversations(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	conversations, meta, err := h.service.ListConversations(c.Request.Context(), caller, c.Query("q"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, conversations, meta)
}

// ConversationMessages handles GET /conversations/:participantID/messages
// @Summary Chronological messages exchanged with one participant
// @Tags conversations
// @Produce json
// @Param participantID path string true "Counterpart user ID"
// @Success 200 {object} common.APIResponse{data=[]domain.Message}
// @Failure 404 {object} common.APIResponse
// @Router /conversations/{participantID}/messages [get]
func (h *CommsHandler) ConversationMessages(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	msgs, err := h.service.ConversationMessages(c.Request.Context(), caller, c.Param("participantID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, msgs, nil)
}

// MarkConversationRead handles POST /conversations/:participantID/read
// @Summary Mark every unread message in a conversation as read
// @Tags conversations
// @Produce json
// @Param participantID path string true "Counterpart user ID"
// @Success 200 {object} common.APIResponse
// @Router /conversations/{participantID}/read [post]
func (h *CommsHandler) MarkConversationRead(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	issued, err := h.service.MarkConversationRead(c.Request.Context(), caller, c.Param("participantID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"marked": issued}, nil)
}

// ListThreads handles GET /threads
// @Summary List subject threads, most recent first
// @Tags threads
// @Produce json
// @Param q query string false "Search query (participant name, subject or content)"
// @Success 200 {object} common.APIResponse{data=[]domain.Thread}
// @Router /threads [get]
func (h *CommsHandler) ListThreads(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	threads, meta, err := h.service.ListThreads(c.Request.Context(), caller, c.Query("q"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, threads, meta)
}

// ThreadMessages handles GET /threads/:threadID/messages
// @Summary Chronological messages of one thread
// @Tags threads
// @Produce json
// @Param threadID path string true "Thread ID"
// @Success 200 {object} common.APIResponse{data=[]domain.Message}
// @Failure 404 {object} common.APIResponse
// @Router /threads/{threadID}/messages [get]
func (h *CommsHandler) ThreadMessages(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	msgs, err := h.service.ThreadMessages(c.Request.Context(), caller, c.Param("threadID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, msgs, nil)
}

// MarkThreadRead handles POST /threads/:threadID/read
// @Summary Mark every unread message in a thread as read
// @Tags threads
// @Produce json
// @Param threadID path string true "Thread ID"
// @Success 200 {object} common.APIResponse
// @Router /threads/{threadID}/read [post]
func (h *CommsHandler) MarkThreadRead(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	issued, err := h.service.MarkThreadRead(c.Request.Context(), caller, c.Param("threadID"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"marked": issued}, nil)
}

// SendMessage handles POST /messages
// @Summary Send a message through the upstream store
// @Tags messages
// @Accept json
// @Produce json
// @Param request body domain.SendMessageRequest true "Message payload"
// @Success 200 {object} common.APIResponse{data=domain.Message}
// @Router /messages [post]
func (h *CommsHandler) SendMessage(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), caller, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, msg, nil)
}

// UnreadCount handles GET /messages/unread-count
// @Summary Total unread messages for the caller
// @Tags messages
// @Produce json
// @Success 200 {object} common.APIResponse{data=domain.UnreadCountResponse}
// @Router /messages/unread-count [get]
func (h *CommsHandler) UnreadCount(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	common.SuccessResponse(c, domain.UnreadCountResponse{UnreadCount: count}, nil)
}
