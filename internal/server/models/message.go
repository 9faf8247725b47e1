package models

import "time"

type MessageType string

const (
	MessageIncoming MessageType = "incoming"
	MessageOutgoing MessageType = "outgoing"
	MessageNote     MessageType = "note"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageIncoming, MessageOutgoing, MessageNote:
		return true
	}
	return false
}

// ContactMessage is one entry in a contact's conversation thread.
type ContactMessage struct {
	ID          string      `json:"id"`
	ContactID   string      `json:"contact_id"`
	UserID      *string     `json:"user_id"`
	Username    *string     `json:"username,omitempty"`
	ContactName string      `json:"contact_name,omitempty"`
	Message     string      `json:"message"`
	MessageType MessageType `json:"message_type"`
	IsRead      bool        `json:"is_read"`
	CreatedAt   time.Time   `json:"created_at"`
}

type MessageUpdate struct {
	Message     *string
	MessageType *MessageType
	IsRead      *bool
}

func (u MessageUpdate) Empty() bool {
	return u.Message == nil && u.MessageType == nil && u.IsRead == nil
}
