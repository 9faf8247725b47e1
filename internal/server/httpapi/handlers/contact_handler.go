package handlers

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/dmitrijs2005/contactkeeper/internal/server/notify"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ContactHandler struct {
	contacts ContactService
	exports  ExportService
}

func NewContactHandler(contacts ContactService, exports ExportService) *ContactHandler {
	return &ContactHandler{contacts: contacts, exports: exports}
}

type CreateContactRequest struct {
	FullName  string `json:"fullName" binding:"required,min=3,max=255"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required,phone10"`
	Message   string `json:"message" binding:"required,min=10,max=1000"`
	Recaptcha string `json:"recaptcha"`
}

// Create accepts a submission from the public form.
func (h *ContactHandler) Create(c *gin.Context) {
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	contact, err := h.contacts.CreatePublic(c.Request.Context(), services.NewContactInput{
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Message:      req.Message,
		CaptchaToken: req.Recaptcha,
		RemoteIP:     c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contact, "Contact form submitted successfully")
}

// ContactQuery is the filter accepted by the list and export endpoints.
type ContactQuery struct {
	Search     string `form:"search"`
	Status     string `form:"status" binding:"omitempty,oneof=not_attended on_hold attended sent"`
	Priority   string `form:"priority" binding:"omitempty,oneof=low medium high"`
	AssignedTo string `form:"assigned_to" binding:"omitempty,uuid"`
	SortBy     string `form:"sort_by"`
	SortOrder  string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

func bindFilter(c *gin.Context) (models.ContactFilter, bool) {
	var q ContactQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ValidationError(c, err)
		return models.ContactFilter{}, false
	}
	page, limit, err := pageQuery(c)
	if err != nil {
		response.Error(c, err)
		return models.ContactFilter{}, false
	}
	return models.ContactFilter{
		Page:       page,
		Limit:      limit,
		Search:     strings.TrimSpace(q.Search),
		Status:     models.ContactStatus(q.Status),
		Priority:   models.Priority(q.Priority),
		AssignedTo: q.AssignedTo,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
	}, true
}

func (h *ContactHandler) List(c *gin.Context) {
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	p, err := h.contacts.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, p)
}

// Mine lists the contacts assigned to the caller.
func (h *ContactHandler) Mine(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	p, err := h.contacts.ListAssignedTo(c.Request.Context(), who.ID, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, p)
}

func (h *ContactHandler) Stats(c *gin.Context) {
	st, err := h.contacts.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, st, "")
}

func (h *ContactHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	contact, err := h.contacts.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contact, "")
}

type UpdateContactRequest struct {
	Status     *string        `json:"status" binding:"omitempty,oneof=not_attended on_hold attended sent"`
	Priority   *string        `json:"priority" binding:"omitempty,oneof=low medium high"`
	Notes      *string        `json:"notes" binding:"omitempty,max=1000"`
	AssignedTo nullableString `json:"assigned_to"`
}

func (h *ContactHandler) Update(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	var upd models.ContactUpdate
	if req.Status != nil {
		s := models.ContactStatus(*req.Status)
		upd.Status = &s
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		upd.Priority = &p
	}
	upd.Notes = req.Notes
	switch {
	case req.AssignedTo.cleared():
		upd.ClearAssignee = true
	case req.AssignedTo.Set:
		if _, err := uuid.Parse(*req.AssignedTo.Value); err != nil {
			response.Fail(c, http.StatusBadRequest, response.MsgValidationFailed,
				[]response.FieldError{{Field: "assigned_to", Message: "must be a valid id"}})
			return
		}
		upd.AssignedTo = req.AssignedTo.Value
	}

	contact, err := h.contacts.Update(c.Request.Context(), who, id, upd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contact, "Contact updated successfully")
}

type AssignContactRequest struct {
	AssignedTo nullableString `json:"assigned_to"`
}

// Assign hands the contact to another account; null unassigns it.
func (h *ContactHandler) Assign(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AssignContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}
	if !req.AssignedTo.Set {
		response.Fail(c, http.StatusBadRequest, response.MsgValidationFailed,
			[]response.FieldError{{Field: "assigned_to", Message: "is required"}})
		return
	}

	var assignee string
	if !req.AssignedTo.cleared() {
		if _, err := uuid.Parse(*req.AssignedTo.Value); err != nil {
			response.Fail(c, http.StatusBadRequest, response.MsgValidationFailed,
				[]response.FieldError{{Field: "assigned_to", Message: "must be a valid id"}})
			return
		}
		assignee = *req.AssignedTo.Value
	}

	contact, err := h.contacts.Assign(c.Request.Context(), who, id, assignee)
	if err != nil {
		response.Error(c, err)
		return
	}
	msg := "Contact assigned successfully"
	if assignee == "" {
		msg = "Contact unassigned successfully"
	}
	response.OK(c, contact, msg)
}

func (h *ContactHandler) Delete(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.contacts.Delete(c.Request.Context(), who, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "Contact deleted successfully")
}

type FollowUpRequest struct {
	Subject       string `json:"subject" binding:"max=200"`
	CustomMessage string `json:"customMessage" binding:"required,max=5000"`
}

func (h *ContactHandler) FollowUp(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	contact, err := h.contacts.SendFollowUp(c.Request.Context(), who, id, req.Subject, req.CustomMessage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contact, "Follow-up email sent successfully")
}

type EmailTemplateRequest struct {
	EmailType string `json:"emailType" binding:"required,oneof=welcome followup quote"`
}

func (h *ContactHandler) EmailTemplate(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req EmailTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	if err := h.contacts.SendEmailTemplate(c.Request.Context(), who, id, notify.TemplateKind(req.EmailType)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "Email template sent to the team")
}

// Export uploads the filtered contacts as CSV and returns a download link.
func (h *ContactHandler) Export(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}
	res, err := h.exports.Export(c.Request.Context(), who, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	if res.Count == 0 {
		response.OK(c, res, "No contacts matched the filter")
		return
	}
	response.OK(c, res, "Export ready")
}
