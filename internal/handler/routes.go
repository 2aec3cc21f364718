package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the webhook endpoint plus the health and metrics
// probes.
func RegisterRoutes(e *echo.Echo, webhook *WebhookHandler) {
	e.POST("/webhook", webhook.Handle)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
