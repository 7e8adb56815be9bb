package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plainapi/internal/app"
	"plainapi/internal/handlers"
	"plainapi/internal/middlewares"
	"plainapi/internal/routes"
)

// NewRouter builds the gin engine for the parse service.
func NewRouter(a *app.App) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middlewares.RequestID, middlewares.AccessLog(a.Logger))
	if origins := a.Config.HTTP.AllowOrigins; len(origins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = origins
		corsCfg.ExposeHeaders = []string{middlewares.RequestIDHeader}
		router.Use(cors.New(corsCfg))
	}

	parseHandler := handlers.NewParseHandler(a.Parser, a.Schema)
	routes.NewParseRoutes(parseHandler).RegisterRoutes(&router.RouterGroup)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})))
	return router
}

// NewServer wraps the router in an http.Server configured from a.Config.
func NewServer(a *app.App) *http.Server {
	cfg := a.Config.HTTP
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(a),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  2 * cfg.WriteTimeout,
	}
}
