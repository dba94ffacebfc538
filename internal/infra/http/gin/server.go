package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"motorent/internal/infra/config"
	"motorent/internal/infra/obs"
)

type DraftHTTP interface {
	Start(c *gin.Context)
	Get(c *gin.Context)
	UpdateDetails(c *gin.Context)
	Tap(c *gin.Context)
	AddWindow(c *gin.Context)
	UpdateWindow(c *gin.Context)
	RemoveWindow(c *gin.Context)
	SetAllDay(c *gin.Context)
	ResetDates(c *gin.Context)
	Submit(c *gin.Context)
	Abandon(c *gin.Context)
}

type Handlers struct {
	Drafts    DraftHTTP
	Identity  gin.HandlerFunc
	RateLimit gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", CallerHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Identity != nil {
		api.Use(h.Identity)
	}
	if h.RateLimit != nil {
		api.Use(h.RateLimit)
	}
	if h.Drafts != nil {
		drafts := api.Group("/drafts")
		drafts.POST("", h.Drafts.Start)
		drafts.GET("/:id", h.Drafts.Get)
		drafts.DELETE("/:id", h.Drafts.Abandon)
		drafts.PUT("/:id/details", h.Drafts.UpdateDetails)
		drafts.POST("/:id/submit", h.Drafts.Submit)

		avail := drafts.Group("/:id/availability")
		avail.POST("/taps", h.Drafts.Tap)
		avail.POST("/windows", h.Drafts.AddWindow)
		avail.PUT("/windows/:index", h.Drafts.UpdateWindow)
		avail.DELETE("/windows/:index", h.Drafts.RemoveWindow)
		avail.PUT("/all-day", h.Drafts.SetAllDay)
		avail.DELETE("/dates", h.Drafts.ResetDates)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
