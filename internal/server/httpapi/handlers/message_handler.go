package handlers

import (
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages MessageService
}

func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) ListByContact(c *gin.Context) {
	contactID, ok := pathID(c, "contactId")
	if !ok {
		return
	}
	page, limit, err := pageQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	p, err := h.messages.ListByContact(c.Request.Context(), contactID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, p)
}

type CreateMessageRequest struct {
	Message     string `json:"message" binding:"required,min=1,max=1000"`
	MessageType string `json:"message_type" binding:"omitempty,oneof=incoming outgoing note"`
}

func (h *MessageHandler) Create(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	contactID, ok := pathID(c, "contactId")
	if !ok {
		return
	}
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	m, err := h.messages.Create(c.Request.Context(), who, contactID, req.Message, models.MessageType(req.MessageType))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m, "Message created successfully")
}

type UpdateMessageRequest struct {
	Message     *string `json:"message" binding:"omitempty,min=1,max=1000"`
	MessageType *string `json:"message_type" binding:"omitempty,oneof=incoming outgoing note"`
	IsRead      *bool   `json:"is_read"`
}

func (h *MessageHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	upd := models.MessageUpdate{Message: req.Message, IsRead: req.IsRead}
	if req.MessageType != nil {
		t := models.MessageType(*req.MessageType)
		upd.MessageType = &t
	}

	m, err := h.messages.Update(c.Request.Context(), id, upd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m, "Message updated successfully")
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "Message deleted successfully")
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	contactID, ok := pathID(c, "contactId")
	if !ok {
		return
	}
	n, err := h.messages.MarkRead(c.Request.Context(), who, contactID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"updated": n}, "Messages marked as read")
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	n, err := h.messages.UnreadCount(c.Request.Context(), who)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"count": n}, "")
}
