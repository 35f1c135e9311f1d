package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"fish-feeder-backend/config"
	"fish-feeder-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheStore := cache.New(cfg.CacheTTL(), 10*time.Minute)
	caching := mw.Cache(cacheStore, cfg.CacheTTL())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/feedings", h.PostFeeding)
		api.GET("/feedings", h.GetFeedings)

		api.GET("/scheduled_feedings", caching, h.GetScheduledFeedings)
		api.GET("/schedules", h.GetSchedules)
		api.POST("/schedules", h.PostSchedule)
		api.PUT("/schedules/:id", h.PutSchedule)
		api.DELETE("/schedules/:id", h.DeleteSchedule)

		api.GET("/settings/feed_angle", h.GetFeedAngle)
		api.PUT("/settings/feed_angle", h.PutFeedAngle)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
