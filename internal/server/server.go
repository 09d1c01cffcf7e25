// Package server exposes the HTTP API over the stores and engines.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Config wires the router's dependencies.
type Config struct {
	Handler *Handler

	// APIKeys guard the read endpoints; AdminAPIKeys guard the admin
	// endpoints. An empty list leaves the corresponding group open.
	APIKeys      []string
	AdminAPIKeys []string

	Logger zerolog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg *Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))

	router.GET("/healthz", cfg.Handler.Health)

	api := router.Group("/api/v1")
	api.Use(apiKeyAuth(cfg.APIKeys))
	{
		mints := api.Group("/mints/:address")
		mints.GET("/ohlc", cfg.Handler.GetOHLC)
		mints.GET("/transactions", cfg.Handler.GetTransactions)
		mints.GET("/price/latest", cfg.Handler.GetLatestPrice)

		api.GET("/status/scheduler", cfg.Handler.GetSchedulerStatus)
	}

	admin := api.Group("/admin/mints/:address")
	admin.Use(apiKeyAuth(cfg.AdminAPIKeys))
	{
		admin.POST("/fetch", cfg.Handler.Fetch)
		admin.POST("/ohlc/generate", cfg.Handler.GenerateOHLC)
		admin.POST("/ohlc/rebuild", cfg.Handler.RebuildOHLC)
	}

	return router
}
