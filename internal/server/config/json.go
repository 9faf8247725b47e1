package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/flagx"
	"github.com/dmitrijs2005/contactkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "15m" or a
// nanosecond count. Only keys present in the file override earlier layers.
type JsonConfig struct {
	Env                         string         `json:"env"`
	HTTPAddr                    string         `json:"http_addr"`
	GRPCAddr                    string         `json:"grpc_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ResetTokenValidityDuration  timex.Duration `json:"reset_token_validity_duration"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	PasswordMinLength           int            `json:"password_min_length"`
	FrontendURL                 string         `json:"frontend_url"`
	AllowedOrigins              []string       `json:"allowed_origins"`
	TrustedProxies              []string       `json:"trusted_proxies"`
	RequestTimeout              timex.Duration `json:"request_timeout"`
	NotifyTimeout               timex.Duration `json:"notify_timeout"`
	RecaptchaSecret             string         `json:"recaptcha_secret"`
	RecaptchaURL                string         `json:"recaptcha_url"`
	SlackBotToken               string         `json:"slack_bot_token"`
	SlackChannel                string         `json:"slack_channel"`
	TelegramBotToken            string         `json:"telegram_bot_token"`
	TelegramChatID              int64          `json:"telegram_chat_id"`
	SMTPHost                    string         `json:"smtp_host"`
	SMTPPort                    int            `json:"smtp_port"`
	SMTPUser                    string         `json:"smtp_user"`
	SMTPPassword                string         `json:"smtp_password"`
	EmailFrom                   string         `json:"email_from"`
	RedisAddr                   string         `json:"redis_addr"`
	RedisPassword               string         `json:"redis_password"`
	RateLimitMax                int            `json:"rate_limit_max"`
	AuthRateLimitMax            int            `json:"auth_rate_limit_max"`
	RateLimitWindow             timex.Duration `json:"rate_limit_window"`
	DefaultPageSize             int            `json:"default_page_size"`
	MaxPageSize                 int            `json:"max_page_size"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config, if any, over config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.Env, c.Env)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.ResetTokenValidityDuration, c.ResetTokenValidityDuration)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.PasswordMinLength, c.PasswordMinLength)
	setString(&config.FrontendURL, c.FrontendURL)
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if len(c.TrustedProxies) > 0 {
		config.TrustedProxies = c.TrustedProxies
	}
	setDuration(&config.RequestTimeout, c.RequestTimeout)
	setDuration(&config.NotifyTimeout, c.NotifyTimeout)
	setString(&config.RecaptchaSecret, c.RecaptchaSecret)
	setString(&config.RecaptchaURL, c.RecaptchaURL)
	setString(&config.SlackBotToken, c.SlackBotToken)
	setString(&config.SlackChannel, c.SlackChannel)
	setString(&config.TelegramBotToken, c.TelegramBotToken)
	if c.TelegramChatID != 0 {
		config.TelegramChatID = c.TelegramChatID
	}
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.EmailFrom, c.EmailFrom)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RateLimitMax, c.RateLimitMax)
	setInt(&config.AuthRateLimitMax, c.AuthRateLimitMax)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setInt(&config.DefaultPageSize, c.DefaultPageSize)
	setInt(&config.MaxPageSize, c.MaxPageSize)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
