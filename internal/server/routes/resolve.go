package routes

import (
	"net/http"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/internal/metrics"
	"github.com/DecisionNerd/infoextract-cidoc/internal/server/middleware"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"

	"github.com/labstack/echo/v4"
)

// PostResolveHandler resolves a lite extraction result.
func PostResolveHandler(c echo.Context) error {
	lite := new(extraction.LiteResult)
	if err := c.Bind(lite); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(lite); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := extraction.Resolve(*lite)
	return c.JSON(http.StatusOK, result)
}

type extractParams struct {
	Text string `json:"text"`
	URL  string `json:"url" validate:"omitempty,url"`
}

// PostExtractHandler extracts and resolves a text, or the text at a URL.
func PostExtractHandler(c echo.Context) error {
	params := new(extractParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if (params.Text == "") == (params.URL == "") {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Exactly one of text and url is required"})
	}

	app := middleware.GetApp(c)
	if app.Resolver == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Extraction is not configured"})
	}

	ctx := c.Request().Context()
	text := params.Text
	if params.URL != "" {
		if app.Sources == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Web sources are not configured"})
		}
		loaded, err := app.Sources.Load(ctx, params.URL)
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		text = loaded
	}

	start := time.Now()
	result, err := app.Resolver.ExtractAndResolve(ctx, text)
	metrics.RecordRun("http", start, err)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	metrics.RecordResult(&result)
	return c.JSON(http.StatusOK, result)
}
