package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func NewRouter(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", h.Health)

	g := e.Group("/v1")
	g.POST("/registrations", h.RegisterRaw)
	g.POST("/registrations/canonical", h.RegisterCanonical)
	g.POST("/scans", h.Scan)
	g.GET("/users/:id/report", h.Report)
	return e
}
