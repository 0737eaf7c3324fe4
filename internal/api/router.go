// Package api exposes the harvested collection over HTTP.
package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "auctionharvester/internal/docs"
	"auctionharvester/internal/logger"
	"auctionharvester/internal/middleware"
)

// NewRouter builds the gin engine with CORS, security headers and per-IP rate limiting
func NewRouter(h *Handler, limiter *middleware.RateLimiter, log logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	r.SetTrustedProxies([]string{
		"127.0.0.1",
		"::1",
		"172.16.0.0/12",
		"10.0.0.0/8",
		"192.168.0.0/16",
	})

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	r.Use(cors.New(config))

	// Registered ahead of SecurityHeaders; swagger-ui needs its own scripts and styles
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.HTTPMethodFilter([]string{http.MethodGet, http.MethodOptions}, log))

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(limiter, log))
	{
		api.GET("/health", h.Health)
		api.GET("/auctions", h.ListAuctions)
		api.GET("/auctions/:id", h.GetAuction)
		api.GET("/summary", h.Summary)
	}
	return r
}
