package api

import (
	"github.com/gin-gonic/gin"

	"monitoring-service/internal/logging"
)

func NewRouter(logger *logging.Logger, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	r.GET("/healthz", h.Healthz)
	r.GET("/monitor", h.Monitor)
	r.GET("/monitor/targets", h.Targets)
	r.GET("/monitor/targets/:name", h.Target)
	r.GET("/monitor/escalations", h.Escalations)
	r.GET("/metrics/:name", h.Metrics)
	r.GET("/monitor/ws", h.Stream)

	return r
}
