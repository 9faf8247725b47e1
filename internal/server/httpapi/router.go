// Package httpapi assembles the gin engine serving the public contact form
// and the staff dashboard API.
package httpapi

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/contactkeeper/internal/logging"
	"github.com/dmitrijs2005/contactkeeper/internal/server/auth"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/handlers"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/middleware"
	"github.com/dmitrijs2005/contactkeeper/internal/server/httpapi/response"
	"github.com/dmitrijs2005/contactkeeper/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
)

// AuthService is the credential core plus bearer token verification.
type AuthService interface {
	handlers.AuthService
	middleware.TokenVerifier
}

type Dependencies struct {
	Auth     AuthService
	Users    handlers.UserService
	Contacts handlers.ContactService
	Messages handlers.MessageService
	Exports  handlers.ExportService

	// DB backs /healthz; nil skips the ping.
	DB handlers.Pinger

	// FormLimiter guards the public contact form, AuthLimiter the
	// credential endpoints.
	FormLimiter ratelimit.Limiter
	AuthLimiter ratelimit.Limiter

	AllowedOrigins []string
	// TrustedProxies may set the client address through X-Forwarded-For.
	// Nil trusts none, so rate limits key on the peer address.
	TrustedProxies []string
	RequestTimeout time.Duration
	Logger         logging.Logger
}

func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := response.RegisterValidators(); err != nil {
		return nil, err
	}
	logger := deps.Logger.With("module", "http")

	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.Timeout(deps.RequestTimeout))

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Users, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.Users)
	contactHandler := handlers.NewContactHandler(deps.Contacts, deps.Exports)
	messageHandler := handlers.NewMessageHandler(deps.Messages)

	authenticated := middleware.Authenticate(deps.Auth)
	admin := middleware.RequireRoles(auth.AdminOnly)
	managers := middleware.RequireRoles(auth.ManagerOrAdmin)
	staff := middleware.RequireRoles(auth.AnyStaff)

	router.GET("/healthz", handlers.Health(deps.DB))

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		limited := authGroup.Group("", middleware.RateLimit(deps.AuthLimiter, "auth", logger))
		limited.POST("/login", authHandler.Login)
		limited.POST("/forgot-password", authHandler.ForgotPassword)
		limited.POST("/reset-password", authHandler.ResetPassword)
		limited.POST("/validate-reset-token", authHandler.ValidateResetToken)

		session := authGroup.Group("", authenticated)
		session.POST("/logout", authHandler.Logout)
		session.GET("/me", authHandler.Me)
		session.POST("/users", admin, userHandler.Create)
		session.GET("/users", managers, userHandler.List)
		session.GET("/users/:id", managers, userHandler.Get)
		session.PUT("/users/:id", userHandler.Update)
		session.DELETE("/users/:id", admin, userHandler.Delete)
	}

	contacts := api.Group("/contacts")
	{
		contacts.POST("", middleware.RateLimit(deps.FormLimiter, "contact_form", logger), contactHandler.Create)

		dash := contacts.Group("", authenticated)
		dash.GET("", staff, contactHandler.List)
		dash.GET("/my", staff, contactHandler.Mine)
		dash.GET("/stats", staff, contactHandler.Stats)
		dash.POST("/export", managers, contactHandler.Export)
		dash.GET("/:id", staff, contactHandler.Get)
		dash.PUT("/:id", staff, contactHandler.Update)
		dash.PUT("/:id/assign", managers, contactHandler.Assign)
		dash.POST("/:id/follow-up", staff, contactHandler.FollowUp)
		dash.POST("/:id/email-template", staff, contactHandler.EmailTemplate)
		dash.DELETE("/:id", managers, contactHandler.Delete)
	}

	messages := api.Group("/messages", authenticated, staff)
	{
		messages.GET("/unread-count", messageHandler.UnreadCount)
		messages.GET("/contact/:contactId", messageHandler.ListByContact)
		messages.POST("/contact/:contactId", messageHandler.Create)
		messages.POST("/contact/:contactId/mark-read", messageHandler.MarkRead)
		messages.PUT("/:id", messageHandler.Update)
		messages.DELETE("/:id", messageHandler.Delete)
	}

	return router, nil
}
