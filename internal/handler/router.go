package handler

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entrypass/internal/httpmiddleware"
	"entrypass/internal/metrics"
)

type RouterOptions struct {
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
	RateLimitPerMin int
	// StaticDir holds the staff portal. It is served only if it exists.
	StaticDir string
}

var unloggedPaths = []string{"/healthz", "/metrics"}

func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.AccessLog(opts.Logger, unloggedPaths...))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", httpmiddleware.RequestIDHeader},
		ExposeHeaders:   []string{httpmiddleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	if opts.RateLimitPerMin > 0 {
		r.Use(httpmiddleware.NewTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin, opts.Metrics, unloggedPaths...).Middleware())
	}

	r.GET("/healthz", h.Healthz)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.POST("/send-qr-codes", h.SendQRCodes)
		api.POST("/send-single-qr", h.SendSingleQR)
		api.POST("/verify-qr", h.VerifyQR)
		api.POST("/check-in", h.CheckIn)
		api.GET("/attendees", h.ListAttendees)
		api.GET("/stats", h.Stats)
	}

	r.NoRoute(noRoute(opts.StaticDir))
	return r
}

// noRoute serves the staff portal for unknown GET paths outside /api.
func noRoute(staticDir string) gin.HandlerFunc {
	var files http.Handler
	if info, err := os.Stat(staticDir); staticDir != "" && err == nil && info.IsDir() {
		files = http.FileServer(http.Dir(staticDir))
	}

	return func(c *gin.Context) {
		isRead := c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead
		if files != nil && isRead && !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			files.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	}
}
