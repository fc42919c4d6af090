package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-job-tracker/internal/metrics"
	"github.com/justsurfingit/ats-job-tracker/internal/middleware"
	"github.com/sirupsen/logrus"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Applications *ApplicationHandler
	Goals        *GoalHandler
	Stats        *StatsHandler
	AI           *AIHandler

	Log            *logrus.Logger
	AllowedOrigins []string
	Passcode       string
	AILimiter      *middleware.RateLimiter
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics(), middleware.AccessLog(d.Log))
	r.Use(cors.New(corsConfig(d.AllowedOrigins)), preflight)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/health", HealthCheck)

	protected := api.Group("", middleware.Passcode(d.Passcode))
	{
		protected.GET("/applications", d.Applications.List)
		protected.POST("/applications", d.Applications.Create)
		protected.GET("/applications/:id", d.Applications.Get)
		protected.PUT("/applications/:id", d.Applications.Update)
		protected.DELETE("/applications/:id", d.Applications.Delete)

		protected.GET("/goals", d.Goals.List)
		protected.POST("/goals", d.Goals.Set)
		protected.GET("/goals/today", d.Goals.Today)

		protected.GET("/stats", d.Stats.Get)
	}

	if d.AI != nil {
		ai := protected.Group("/ai")
		if d.AILimiter != nil {
			ai.Use(d.AILimiter.Handler())
		}
		ai.POST("/analyze", d.AI.Analyze)
		ai.POST("/optimize", d.AI.Optimize)
		ai.POST("/extract", d.AI.Extract)
	}

	return r
}

// preflight answers OPTIONS requests that carry no Origin header, which the
// cors middleware lets through.
func preflight(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Next()
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.PasscodeHeader, middleware.RequestIDHeader}
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	cfg.OptionsResponseStatusCode = http.StatusOK
	cfg.MaxAge = 12 * time.Hour
	return cfg
}
