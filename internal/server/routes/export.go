package routes

import (
	"net/http"
	"strconv"

	"github.com/DecisionNerd/infoextract-cidoc/internal/server/middleware"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/export"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"

	"github.com/labstack/echo/v4"
)

type cypherResponse struct {
	Script     string         `json:"script"`
	Parameters map[string]any `json:"parameters"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// PostExportCypherHandler renders a resolved result as a Cypher script
// with its parameters. format=text returns only the script.
func PostExportCypherHandler(c echo.Context) error {
	app := middleware.GetApp(c)

	opts := export.DefaultCypherOptions()
	if q := c.QueryParam("batch_size"); q != "" {
		size, err := strconv.Atoi(q)
		if err != nil || size <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "batch_size must be a positive integer"})
		}
		opts.BatchSize = size
	}
	if q := c.QueryParam("constraints"); q != "" {
		include, err := strconv.ParseBool(q)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "constraints must be a boolean"})
		}
		opts.IncludeConstraints = include
	}

	result := new(extraction.Result)
	if err := c.Bind(result); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	graph := extraction.ToCRM(result, app.Registry)
	cypher := export.NewCypher(app.Registry, opts)
	script := cypher.Script(&graph)

	if c.QueryParam("format") == "text" {
		return c.String(http.StatusOK, script)
	}
	return c.JSON(http.StatusOK, cypherResponse{
		Script:     script,
		Parameters: cypher.Parameters(&graph),
		Warnings:   export.CheckScript(script),
	})
}

// PostExportMarkdownHandler renders a resolved result as Markdown in the
// style given by the style query parameter.
func PostExportMarkdownHandler(c echo.Context) error {
	app := middleware.GetApp(c)

	style, err := export.ParseStyle(c.QueryParam("style"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result := new(extraction.Result)
	if err := c.Bind(result); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	graph := extraction.ToCRM(result, app.Registry)
	showCodes := c.QueryParam("codes") != "false"
	md := export.NewMarkdown(app.Registry, export.WithGraph(&graph), export.WithCodes(showCodes))

	out, err := md.RenderGraph(&graph, style)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(out))
}
