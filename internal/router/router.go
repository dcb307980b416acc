package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/config"
	"github.com/stemsi/testhub-backend/internal/handler"
	"github.com/stemsi/testhub-backend/internal/middleware"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Test    *handler.TestHandler
	Attempt *handler.AttemptHandler
	Result  *handler.ResultHandler
	Admin   *handler.AdminHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	rdb *redis.Client,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(
		response.RequestIDMiddleware(),
		middleware.RequestLogger(log),
		middleware.Brotli(),
	)

	router.GET("/health", handlers.System.Health)

	requireUser := []gin.HandlerFunc{
		middleware.RequireAuth(authService),
		middleware.RejectRevokedTokens(authService),
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authLimiter := middleware.NewRateLimiter(rdb, "auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.NoStore())
	{
		auth.POST("/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/login", authLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/logout", append(requireUser, handlers.Auth.Logout)...)
	}

	// ─── 2. User Group (JWT) ───────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())
	api.Use(requireUser...)
	{
		api.GET("/users/me", handlers.User.GetMe)
		api.PUT("/users/me", handlers.User.UpdateMe)

		api.GET("/tests", handlers.Test.ListTests)
		api.GET("/tests/:id", handlers.Test.GetTest)

		api.POST("/tests/:id/attempt", handlers.Attempt.StartAttempt)
		api.GET("/tests/:id/attempt", handlers.Attempt.GetAttempt)
		api.PUT("/tests/:id/attempt/answers", handlers.Attempt.SaveAnswer)

		api.GET("/test-results", handlers.Result.ListMine)
		api.POST("/test-results", handlers.Result.Submit)
		api.GET("/test-results/:id", handlers.Result.GetResult)
	}

	// ─── 3. WebSocket Group (query token) ──────────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(
		middleware.RequireWSAuth(authService),
		middleware.RejectRevokedTokens(authService),
	)
	{
		wsGroup.GET("/tests/:id/stream", handlers.WS.TestStream)
	}

	// ─── 4. Admin Group (JWT + role) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.NoStore())
	adminAPI.Use(requireUser...)
	adminAPI.Use(middleware.RequireAdmin())
	{
		adminAPI.POST("/tests", handlers.Test.CreateTest)
		adminAPI.POST("/tests/import", handlers.Test.ImportTest)
		adminAPI.PUT("/tests/:id", handlers.Test.UpdateTest)
		adminAPI.DELETE("/tests/:id", handlers.Test.DeleteTest)

		adminAPI.GET("/tests/:id/results", handlers.Result.ListByTest)
		adminAPI.GET("/tests/:id/results/export", handlers.Result.ExportByTest)
		adminAPI.DELETE("/test-results/:id", handlers.Result.DeleteResult)

		adminAPI.GET("/stats", handlers.Admin.GetStats)
	}

	return router
}
