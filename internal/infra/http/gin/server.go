package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"resort/internal/infra/config"
	"resort/internal/infra/obs"
)

type Handlers struct {
	Booking      BookingHTTP
	Availability AvailabilityHTTP
	Me           MeHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, metrics *obs.Metrics, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, metrics, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, metrics *obs.Metrics, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	if metrics != nil {
		router.Use(metrics.HTTP())
	}
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := router.Group("/api/v1", PrincipalMiddleware())
	if h.Booking != nil {
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/cancel", h.Booking.Cancel)
		api.POST("/bookings/:id/confirm", h.Booking.Confirm)
		api.POST("/bookings/:id/check-in", h.Booking.CheckIn)
		api.POST("/bookings/:id/check-out", h.Booking.CheckOut)
		api.POST("/bookings/:id/payments", h.Booking.StartPayment)
		api.POST("/bookings/:id/payments/verify", h.Booking.VerifyPayment)
	}
	if h.Availability != nil {
		api.GET("/availability", h.Availability.Rooms)
		api.GET("/availability/occupancy", h.Availability.Occupancy)
	}
	if h.Me != nil {
		api.GET("/me/bookings", h.Me.ListBookings)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", userIDHeader, userRoleHeader, obs.RequestIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
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
