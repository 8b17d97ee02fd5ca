package server

import (
	"net/http"

	"github.com/DecisionNerd/infoextract-cidoc/internal/server/middleware"
	"github.com/DecisionNerd/infoextract-cidoc/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Resolution and validation
	apiRoutes.POST("/resolve", routes.PostResolveHandler)
	apiRoutes.POST("/extract", routes.PostExtractHandler)
	apiRoutes.POST("/validate", routes.PostValidateHandler)

	// Export routes
	apiRoutes.POST("/export/cypher", routes.PostExportCypherHandler)
	apiRoutes.POST("/export/markdown", routes.PostExportMarkdownHandler)

	// Schema routes
	apiRoutes.GET("/schema/properties/:code", routes.GetPropertyHandler)
	apiRoutes.GET("/schema/classes/:code", routes.GetClassHandler)

	// Background runs
	apiRoutes.POST("/jobs", routes.PostJobHandler)
	apiRoutes.GET("/runs/:id", routes.GetRunHandler)
}
