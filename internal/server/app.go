// Package server wires the ContactKeeper components together and runs the
// HTTP API and the ops gRPC listener until the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/captcha"
	"github.com/dmitrijs2005/contactkeeper/internal/server/config"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/contactkeeper/internal/server/notify"
	"github.com/dmitrijs2005/contactkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contactkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/contactkeeper/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	redis      redis.UniversalClient
	dispatcher *notify.Dispatcher
	handler    http.Handler
	ops        *gs.OpsServer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	app.dispatcher = notify.NewDispatcher(c.FrontendURL, logger, notifyOptions(c, logger)...)

	verifier := captcha.New(c.RecaptchaSecret, c.RecaptchaURL, logger)
	if !verifier.Enabled() {
		logger.Warn(ctx, "reCAPTCHA secret not set, contact form submissions are not verified")
	}

	var formLimiter, authLimiter ratelimit.Limiter
	app.redis, formLimiter, authLimiter = newLimiters(c)
	if app.redis == nil {
		logger.Warn(ctx, "redis not configured, rate limits are kept in memory")
	}

	authService := services.NewAuthService(db, m, c, app.dispatcher, logger)
	userService := services.NewUserService(db, m, c, logger)
	contactService := services.NewContactService(db, m, c, app.dispatcher, verifier, logger)
	messageService := services.NewMessageService(db, m, c, logger)
	exportService := services.NewExportService(db, m, c, logger)

	if c.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	app.handler, err = httpapi.NewRouter(httpapi.Dependencies{
		Auth:           authService,
		Users:          userService,
		Contacts:       contactService,
		Messages:       messageService,
		Exports:        exportService,
		DB:             db,
		FormLimiter:    formLimiter,
		AuthLimiter:    authLimiter,
		AllowedOrigins: c.AllowedOrigins,
		TrustedProxies: c.TrustedProxies,
		RequestTimeout: c.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("router: %w", err)
	}

	app.ops = gs.NewOpsServer(c.GRPCAddr, logger, db, authService)

	return app, nil
}

// notifyOptions enables every channel the configuration has credentials for.
func notifyOptions(c *config.Config, logger logging.Logger) []notify.Option {
	opts := []notify.Option{
		notify.WithTimeout(c.NotifyTimeout),
		notify.WithResetValidity(c.ResetTokenValidityDuration),
	}

	if c.SMTPHost != "" && c.SMTPUser != "" {
		opts = append(opts, notify.WithMailer(notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUser,
			Password: c.SMTPPassword,
			From:     c.EmailFrom,
		})))
	}

	if c.SlackBotToken != "" && c.SlackChannel != "" {
		opts = append(opts, notify.WithChat(notify.NewSlack(c.SlackBotToken, c.SlackChannel)))
	}

	if c.TelegramBotToken != "" && c.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(c.TelegramBotToken, c.TelegramChatID)
		if err != nil {
			logger.Warn(context.Background(), "telegram disabled", "error", err)
		} else {
			opts = append(opts, notify.WithChat(tg))
		}
	}

	return opts
}

// newLimiters returns Redis-backed limiters when RedisAddr is set and
// in-process ones otherwise. The client is nil in the latter case.
func newLimiters(c *config.Config) (redis.UniversalClient, ratelimit.Limiter, ratelimit.Limiter) {
	if c.RedisAddr == "" {
		return nil,
			ratelimit.NewMemoryLimiter(c.RateLimitMax, c.RateLimitWindow),
			ratelimit.NewMemoryLimiter(c.AuthRateLimitMax, c.RateLimitWindow)
	}

	rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPassword})
	return rdb,
		ratelimit.NewRedisLimiter(rdb, c.RateLimitMax, c.RateLimitWindow),
		ratelimit.NewRedisLimiter(rdb, c.AuthRateLimitMax, c.RateLimitWindow)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until a signal arrives, ctx is cancelled or a listener fails,
// then drains pending notifications and releases connections.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Env)

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.serveHTTP(gctx) })
	g.Go(func() error { return app.ops.Run(gctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
	}

	app.dispatcher.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
