package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts chat messages as attachments to one channel.
type Slack struct {
	api     slackAPI
	channel string
}

func NewSlack(token, channel string, opts ...slack.Option) *Slack {
	return &Slack{api: slack.New(token, opts...), channel: channel}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Post(ctx context.Context, msg ChatMessage) error {
	fields := make([]slack.AttachmentField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, slack.AttachmentField{Title: f.Name, Value: f.Value, Short: len(f.Value) < 40})
	}

	attachment := slack.Attachment{
		Color:  msg.Color,
		Title:  msg.Title,
		Text:   msg.Text,
		Fields: fields,
		Footer: "ContactKeeper",
	}

	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(msg.Title, false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}
