package notify

import "context"

// Field is a labelled value shown alongside a chat message.
type Field struct {
	Name  string
	Value string
}

// ChatMessage is the channel-neutral shape posted to Slack and Telegram.
type ChatMessage struct {
	Title  string
	Text   string
	Fields []Field
	// Color is a hex accent used where the channel supports one.
	Color string
}

// ChatPoster publishes a ChatMessage to a team channel.
type ChatPoster interface {
	Name() string
	Post(ctx context.Context, msg ChatMessage) error
}

// Mailer delivers an Email.
type Mailer interface {
	Name() string
	Send(ctx context.Context, e Email) error
}
