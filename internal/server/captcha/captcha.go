// Package captcha verifies reCAPTCHA responses submitted with the public
// contact form.
package captcha

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/common"
	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/netx"
)

const (
	DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"
	verifyTimeout   = 5 * time.Second
)

type siteVerifyResponse struct {
	Success     bool     `json:"success"`
	Score       *float64 `json:"score,omitempty"`
	Action      string   `json:"action,omitempty"`
	Hostname    string   `json:"hostname"`
	ChallengeTS string   `json:"challenge_ts"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks tokens against the siteverify endpoint. A Verifier without
// a secret accepts everything.
type Verifier struct {
	secret   string
	endpoint string
	minScore float64
	client   *http.Client
	logger   logging.Logger
}

type Option func(*Verifier)

func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) { v.client = c }
}

// WithMinScore rejects reCAPTCHA v3 responses scoring below s.
func WithMinScore(s float64) Option {
	return func(v *Verifier) { v.minScore = s }
}

func New(secret, endpoint string, logger logging.Logger, opts ...Option) *Verifier {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	v := &Verifier{
		secret:   secret,
		endpoint: endpoint,
		client:   &http.Client{Timeout: verifyTimeout},
		logger:   logger.With("module", "captcha"),
	}
	for _, o := range opts {
		o(v)
	}
	if secret == "" {
		v.logger.Warn(context.Background(), "recaptcha secret not configured, verification disabled")
	}
	return v
}

func (v *Verifier) Enabled() bool { return v.secret != "" }

// Verify returns common.ErrCaptchaFailed unless token is accepted.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: missing token", common.ErrCaptchaFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	form := url.Values{"secret": {v.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	var resp siteVerifyResponse
	if err := netx.PostFormJSON(ctx, v.client, v.endpoint, form, &resp); err != nil {
		v.logger.Error(ctx, "recaptcha request failed", "error", err)
		return fmt.Errorf("%w: %v", common.ErrCaptchaFailed, err)
	}

	if !resp.Success {
		v.logger.Info(ctx, "recaptcha rejected", "codes", resp.ErrorCodes)
		return fmt.Errorf("%w: %s", common.ErrCaptchaFailed, strings.Join(resp.ErrorCodes, ","))
	}
	if resp.Score != nil && *resp.Score < v.minScore {
		v.logger.Info(ctx, "recaptcha score too low", "score", *resp.Score)
		return fmt.Errorf("%w: low score", common.ErrCaptchaFailed)
	}
	return nil
}
