// Package notify delivers outbound notifications: HTML email over SMTP and
// chat-ops messages to Slack and Telegram.
//
// Event notifications are fire and forget. They run on their own goroutine
// under a bounded timeout, detached from the cancellation of the request that
// triggered them, and their failures are only logged.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/models"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 3
	defaultBackoff  = 500 * time.Millisecond
	defaultValidFor = time.Hour
)

type Dispatcher struct {
	mailer      Mailer
	chats       []ChatPoster
	frontendURL string
	validFor    time.Duration
	timeout     time.Duration
	newBackoff  func() retry.Backoff
	logger      logging.Logger

	wg sync.WaitGroup
}

type Option func(*Dispatcher)

// WithMailer enables the email channel. A nil mailer leaves it disabled.
func WithMailer(m Mailer) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.mailer = m
		}
	}
}

// WithChat adds a chat channel. Nil posters are ignored.
func WithChat(p ChatPoster) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.chats = append(d.chats, p)
		}
	}
}

func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithBackoff replaces the per-channel retry policy.
func WithBackoff(f func() retry.Backoff) Option {
	return func(d *Dispatcher) { d.newBackoff = f }
}

// WithResetValidity sets the lifetime quoted in password reset emails.
func WithResetValidity(v time.Duration) Option {
	return func(d *Dispatcher) {
		if v > 0 {
			d.validFor = v
		}
	}
}

func NewDispatcher(frontendURL string, logger logging.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		validFor:    defaultValidFor,
		timeout:     defaultTimeout,
		newBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(defaultRetries, retry.NewExponential(defaultBackoff))
		},
		logger: logger.With("module", "notify"),
	}
	for _, o := range opts {
		o(d)
	}
	if d.mailer == nil {
		d.logger.Warn(context.Background(), "email channel not configured")
	}
	if len(d.chats) == 0 {
		d.logger.Warn(context.Background(), "no chat channels configured")
	}
	return d
}

// Wait blocks until every in-flight notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type job struct {
	channel string
	run     func(ctx context.Context) error
}

// dispatch runs jobs concurrently in the background. The caller never
// observes the outcome.
func (d *Dispatcher) dispatch(ctx context.Context, event string, jobs []job) {
	if len(jobs) == 0 {
		return
	}

	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		var g errgroup.Group
		for _, j := range jobs {
			j := j
			g.Go(func() error {
				if err := d.withRetry(ctx, j.run); err != nil {
					d.logger.Error(ctx, "notification failed", "event", event, "channel", j.channel, "error", err)
					return err
				}
				d.logger.Debug(ctx, "notification sent", "event", event, "channel", j.channel)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (d *Dispatcher) withRetry(ctx context.Context, f func(ctx context.Context) error) error {
	return retry.Do(ctx, d.newBackoff(), func(ctx context.Context) error {
		if err := f(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (d *Dispatcher) chatJobs(msg ChatMessage) []job {
	jobs := make([]job, 0, len(d.chats))
	for _, c := range d.chats {
		c := c
		jobs = append(jobs, job{channel: c.Name(), run: func(ctx context.Context) error { return c.Post(ctx, msg) }})
	}
	return jobs
}

func (d *Dispatcher) mailJob(e Email) []job {
	if d.mailer == nil {
		return nil
	}
	return []job{{channel: d.mailer.Name(), run: func(ctx context.Context) error { return d.mailer.Send(ctx, e) }}}
}

// ResetLink is the frontend page that redeems token.
func (d *Dispatcher) ResetLink(token string) string {
	return d.frontendURL + "/reset-password?token=" + url.QueryEscape(token)
}

// PasswordReset emails the reset link to the account owner.
func (d *Dispatcher) PasswordReset(ctx context.Context, u *models.User, token string) {
	if d.mailer == nil {
		d.logger.Warn(ctx, "password reset email skipped, email channel not configured", "user_id", u.ID)
		return
	}

	body, err := render("password_reset.html", map[string]any{
		"Username":  u.Username,
		"ResetLink": d.ResetLink(token),
		"ValidFor":  humanDuration(d.validFor),
	})
	if err != nil {
		d.logger.Error(ctx, "password reset email not rendered", "error", err)
		return
	}

	d.dispatch(ctx, "password_reset", d.mailJob(Email{To: u.Email, Subject: "Reset your ContactKeeper password", HTML: body}))
}

// NewContact announces a new submission to the team and sends the
// acknowledgement email to the contact.
func (d *Dispatcher) NewContact(ctx context.Context, c *models.Contact) {
	jobs := d.chatJobs(newContactMessage(c))

	if d.mailer != nil {
		body, err := render("welcome.html", map[string]any{"ContactName": c.FullName, "Phone": c.Phone})
		if err != nil {
			d.logger.Error(ctx, "welcome email not rendered", "error", err)
		} else {
			jobs = append(jobs, d.mailJob(Email{To: c.Email, Subject: "We received your message", HTML: body})...)
		}
	}

	d.dispatch(ctx, "new_contact", jobs)
}

func (d *Dispatcher) StatusChanged(ctx context.Context, c *models.Contact, from, to models.ContactStatus, by string) {
	d.dispatch(ctx, "status_changed", d.chatJobs(statusChangedMessage(c, from, to, by)))
}

func (d *Dispatcher) Assigned(ctx context.Context, c *models.Contact, assignee, by string) {
	d.dispatch(ctx, "assigned", d.chatJobs(assignedMessage(c, assignee, by)))
}

// SendFollowUp emails the contact synchronously so the caller can report
// delivery.
func (d *Dispatcher) SendFollowUp(ctx context.Context, c *models.Contact, subject, text, sender string) error {
	if d.mailer == nil {
		return common.ErrNotificationUnavailable
	}
	if subject == "" {
		subject = "Following up on your message"
	}

	body, err := render("follow_up.html", map[string]any{
		"ContactName": c.FullName,
		"Paragraphs":  paragraphs(text),
		"SenderName":  sender,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.withRetry(ctx, func(ctx context.Context) error {
		return d.mailer.Send(ctx, Email{To: c.Email, Subject: subject, HTML: body})
	})
}

// PostEmailTemplate shares a prepared email of the given kind with the team
// channels. It succeeds if at least one channel accepted it.
func (d *Dispatcher) PostEmailTemplate(ctx context.Context, c *models.Contact, kind TemplateKind, by string) error {
	if len(d.chats) == 0 {
		return common.ErrNotificationUnavailable
	}
	msg, err := emailTemplateMessage(c, kind, by)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	errs := make([]error, len(d.chats))
	var g errgroup.Group
	for i, ch := range d.chats {
		i, ch := i, ch
		g.Go(func() error {
			errs[i] = d.withRetry(ctx, func(ctx context.Context) error { return ch.Post(ctx, msg) })
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	for i, err := range errs {
		if err == nil {
			continue
		}
		d.logger.Error(ctx, "email template post failed", "channel", d.chats[i].Name(), "error", err)
		failed = append(failed, d.chats[i].Name())
	}
	if len(failed) == len(d.chats) {
		return fmt.Errorf("post email template: all channels failed (%s)", strings.Join(failed, ", "))
	}
	return nil
}

func humanDuration(v time.Duration) string {
	switch {
	case v == time.Hour:
		return "1 hour"
	case v%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(v/time.Hour))
	case v%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(v/time.Minute))
	}
	return v.String()
}
