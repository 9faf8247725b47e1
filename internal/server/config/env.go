package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dotenvFile is loaded before reading the environment when present.
var dotenvFile = ".env"

// parseEnv overlays variables from the process environment. A .env file in
// the working directory is loaded first; variables already set win over it.
func parseEnv(c *Config) error {
	if err := godotenv.Load(dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", dotenvFile, err)
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ENV", &c.Env)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("GRPC_ADDR", &c.GRPCAddr)
	str("DATABASE_URL", &c.DatabaseDSN)
	str("JWT_SECRET", &c.SecretKey)
	dur("JWT_EXPIRES_IN", &c.AccessTokenValidityDuration)
	dur("RESET_TOKEN_TTL", &c.ResetTokenValidityDuration)
	num("BCRYPT_COST", &c.BcryptCost)
	num("PASSWORD_MIN_LENGTH", &c.PasswordMinLength)
	str("FRONTEND_URL", &c.FrontendURL)
	if v, ok := os.LookupEnv("CORS_ORIGIN"); ok && v != "" {
		c.AllowedOrigins = splitCSV(v)
	}
	if v, ok := os.LookupEnv("TRUSTED_PROXIES"); ok && v != "" {
		c.TrustedProxies = splitCSV(v)
	}
	dur("REQUEST_TIMEOUT", &c.RequestTimeout)
	dur("NOTIFY_TIMEOUT", &c.NotifyTimeout)
	str("RECAPTCHA_SECRET", &c.RecaptchaSecret)
	str("RECAPTCHA_URL", &c.RecaptchaURL)
	str("SLACK_BOT_TOKEN", &c.SlackBotToken)
	str("SLACK_CHANNEL", &c.SlackChannel)
	str("TELEGRAM_BOT_TOKEN", &c.TelegramBotToken)
	if v, ok := os.LookupEnv("TELEGRAM_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err))
		} else {
			c.TelegramChatID = id
		}
	}
	str("EMAIL_HOST", &c.SMTPHost)
	num("EMAIL_PORT", &c.SMTPPort)
	str("EMAIL_USER", &c.SMTPUser)
	str("EMAIL_PASS", &c.SMTPPassword)
	str("EMAIL_FROM", &c.EmailFrom)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("RATE_LIMIT_MAX", &c.RateLimitMax)
	num("AUTH_RATE_LIMIT_MAX", &c.AuthRateLimitMax)
	dur("RATE_LIMIT_WINDOW", &c.RateLimitWindow)
	num("DEFAULT_PAGE_SIZE", &c.DefaultPageSize)
	num("MAX_PAGE_SIZE", &c.MaxPageSize)
	str("S3_ROOT_USER", &c.S3RootUser)
	str("S3_ROOT_PASSWORD", &c.S3RootPassword)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_BASE_ENDPOINT", &c.S3BaseEndpoint)

	return errors.Join(errs...)
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
