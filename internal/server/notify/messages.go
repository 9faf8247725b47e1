package notify

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
)

// TemplateKind names a prepared email the team can send to a contact.
type TemplateKind string

const (
	TemplateWelcome  TemplateKind = "welcome"
	TemplateFollowUp TemplateKind = "followup"
	TemplateQuote    TemplateKind = "quote"
)

func (k TemplateKind) Valid() bool {
	switch k {
	case TemplateWelcome, TemplateFollowUp, TemplateQuote:
		return true
	}
	return false
}

var statusLabels = map[models.ContactStatus]string{
	models.StatusNotAttended: "Not attended",
	models.StatusOnHold:      "On hold",
	models.StatusAttended:    "Attended",
	models.StatusSent:        "Sent",
}

var priorityColors = map[models.Priority]string{
	models.PriorityLow:    "#36a64f",
	models.PriorityMedium: "#daa038",
	models.PriorityHigh:   "#e01e5a",
}

func statusLabel(s models.ContactStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func contactFields(c *models.Contact) []Field {
	return []Field{
		{Name: "Name", Value: c.FullName},
		{Name: "Email", Value: c.Email},
		{Name: "Phone", Value: c.Phone},
	}
}

func newContactMessage(c *models.Contact) ChatMessage {
	fields := append(contactFields(c),
		Field{Name: "Priority", Value: string(c.Priority)},
		Field{Name: "Source", Value: c.Source},
		Field{Name: "Message", Value: truncate(c.Message, 300)},
	)
	return ChatMessage{
		Title:  "New contact: " + c.FullName,
		Fields: fields,
		Color:  priorityColors[c.Priority],
	}
}

func statusChangedMessage(c *models.Contact, from, to models.ContactStatus, by string) ChatMessage {
	return ChatMessage{
		Title: "Contact status changed",
		Text:  fmt.Sprintf("%s: %s -> %s", c.FullName, statusLabel(from), statusLabel(to)),
		Fields: []Field{
			{Name: "Contact", Value: c.FullName},
			{Name: "Changed by", Value: by},
		},
		Color: "#439fe0",
	}
}

func assignedMessage(c *models.Contact, assignee, by string) ChatMessage {
	return ChatMessage{
		Title: "Contact assigned",
		Text:  fmt.Sprintf("%s was assigned to %s", c.FullName, assignee),
		Fields: append(contactFields(c),
			Field{Name: "Assigned to", Value: assignee},
			Field{Name: "Assigned by", Value: by},
		),
		Color: "#439fe0",
	}
}

func emailTemplateMessage(c *models.Contact, kind TemplateKind, by string) (ChatMessage, error) {
	var subject, body string
	switch kind {
	case TemplateWelcome:
		subject = "Welcome!"
		body = fmt.Sprintf("Hello %s,\n\nThank you for contacting us. We have received your message and will get back to you shortly.", c.FullName)
	case TemplateFollowUp:
		subject = "Following up"
		body = fmt.Sprintf("Hello %s,\n\nWe wanted to follow up on your recent inquiry. Is there anything else we can help you with?", c.FullName)
	case TemplateQuote:
		subject = "Your quote"
		body = fmt.Sprintf("Hello %s,\n\nAs requested, we are preparing a personalised quote. A member of our team will send it to %s within one business day.", c.FullName, c.Email)
	default:
		return ChatMessage{}, fmt.Errorf("%w: unknown template %q", common.ErrorValidation, kind)
	}

	return ChatMessage{
		Title: fmt.Sprintf("Email template %q for %s", kind, c.FullName),
		Text:  body,
		Fields: []Field{
			{Name: "To", Value: c.Email},
			{Name: "Subject", Value: subject},
			{Name: "Requested by", Value: by},
		},
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
