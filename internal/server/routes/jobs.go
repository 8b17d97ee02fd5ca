package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DecisionNerd/infoextract-cidoc/internal/queue"
	"github.com/DecisionNerd/infoextract-cidoc/internal/server/middleware"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PostJobHandler queues an extraction job and answers with its run id.
func PostJobHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Job queue is not configured"})
	}

	job := new(queue.ExtractJob)
	if err := c.Bind(job); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if job.RunID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create run id"})
		}
		job.RunID = id
	}
	if err := job.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	body, err := json.Marshal(job)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to encode job"})
	}
	if err := queue.PublishFIFO(c.Request().Context(), app.Queue, queue.ExtractQueue, body); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to queue job"})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": job.RunID})
}

// GetRunHandler returns the stored result of a completed run.
func GetRunHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	if app.Store == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Result store is not configured"})
	}

	result, err := app.Store.LoadResult(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Run not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}
