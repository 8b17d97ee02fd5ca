package routes

import (
	"errors"
	"net/http"

	"github.com/DecisionNerd/infoextract-cidoc/internal/server/middleware"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"

	"github.com/labstack/echo/v4"
)

type validateResponse struct {
	Valid    bool            `json:"valid"`
	Severity string          `json:"severity"`
	Report   validate.Report `json:"report"`
}

type violationResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind"`
	EntityID      string `json:"entity_id"`
	ClassCode     string `json:"class_code"`
	PropertyCode  string `json:"property_code"`
	Actual        int    `json:"actual,omitempty"`
	Expected      string `json:"expected,omitempty"`
	ExpectedClass string `json:"expected_class,omitempty"`
}

// PostValidateHandler checks a resolved result against the schema. The
// severity query parameter defaults to the server setting; with raise the
// first violation is answered with 422.
func PostValidateHandler(c echo.Context) error {
	app := middleware.GetApp(c)

	sev := app.Severity
	if q := c.QueryParam("severity"); q != "" {
		parsed, err := validate.ParseSeverity(q)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		sev = parsed
	}

	result := new(extraction.Result)
	if err := c.Bind(result); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	graph := extraction.ToCRM(result, app.Registry)
	report, err := app.Validator.Check(&graph, sev)
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusUnprocessableEntity, violationResponse{
				Error:         verr.Error(),
				Kind:          verr.Kind,
				EntityID:      verr.EntityID,
				ClassCode:     verr.ClassCode,
				PropertyCode:  verr.PropertyCode,
				Actual:        verr.Actual,
				Expected:      verr.Expected,
				ExpectedClass: verr.ExpectedClass,
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, validateResponse{Valid: report.Valid(), Severity: string(sev), Report: report})
}
