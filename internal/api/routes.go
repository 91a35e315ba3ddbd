package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v9"

	"forgeai/fitness-agent/internal/agent"
	"forgeai/fitness-agent/internal/metrics"
	"forgeai/fitness-agent/internal/service"
)

// RouterConfig holds the cross-cutting pieces of the router.
type RouterConfig struct {
	AllowedOrigin  string
	RateLimiter    RequestRateLimiter // nil disables rate limiting
	RateLimit      redis_rate.Limit
	MetricsManager *metrics.Manager
	MetricsHandler http.Handler
}

func SetupRoutes(
	router *gin.Engine,
	cfg RouterConfig,
	authService service.AuthService,
	coachService service.CoachService,
	profileService service.ProfileService,
	agentCompleter agent.Completer,
	themes ThemeStore,
	database Pinger,
) {
	authHandler := NewAuthHandler(authService, coachService)
	coachHandler := NewCoachHandler(coachService, profileService)
	agentHandler := NewAgentHandler(agentCompleter)
	deviceHandler := NewDeviceHandler(themes)
	healthHandler := NewHealthHandler(database)

	router.Use(
		PanicRecovery(cfg.MetricsManager),
		RequestID(),
		LogRequest(),
		RequestMetrics(cfg.MetricsManager),
		Cors(cfg.AllowedOrigin),
	)

	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Route not found")
	})

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	apiGroup := router.Group("/api")
	if cfg.RateLimiter != nil {
		apiGroup.Use(RateLimit(cfg.RateLimiter, cfg.RateLimit))
	}
	apiGroup.GET("/health", healthHandler.Health)
	apiGroup.POST("/ai/agent", agentHandler.Ask)

	apiV1 := apiGroup.Group("/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", AuthMiddleware(authService), DeviceMiddleware(), authHandler.Logout)
		}

		deviceGroup := apiV1.Group("/device", DeviceMiddleware())
		{
			deviceGroup.GET("/theme", deviceHandler.GetTheme)
			deviceGroup.PUT("/theme", deviceHandler.SetTheme)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(authService), DeviceMiddleware())
	{
		protected.GET("/me", authHandler.Me)

		coachGroup := protected.Group("/coach")
		{
			coachGroup.GET("/state", coachHandler.State)
			coachGroup.POST("/onboarding", coachHandler.Onboard)
			coachGroup.POST("/workout", coachHandler.NextWorkout)
			coachGroup.POST("/finish", coachHandler.Finish)
		}

		protected.GET("/profile", coachHandler.Profile)
		protected.PUT("/profile/weight", coachHandler.UpdateWeight)
		protected.GET("/history", coachHandler.History)
	}
}
