package routes

import (
	"net/http"

	"github.com/DecisionNerd/infoextract-cidoc/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

type codeParams struct {
	Code string `param:"code" validate:"required"`
}

// GetPropertyHandler returns a property definition by code or alias.
func GetPropertyHandler(c echo.Context) error {
	params := new(codeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	reg := middleware.GetApp(c).Registry
	code, ok := reg.ResolveAlias(params.Code)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown property " + params.Code})
	}
	def, _ := reg.Property(code)
	return c.JSON(http.StatusOK, def)
}

// GetClassHandler returns a class definition with its ancestors and the
// properties its instances may carry.
func GetClassHandler(c echo.Context) error {
	params := new(codeParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	reg := middleware.GetApp(c).Registry
	def, ok := reg.Class(params.Code)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown class " + params.Code})
	}

	type classResponse struct {
		Code       string   `json:"code"`
		Label      string   `json:"label"`
		Parents    []string `json:"parents,omitempty"`
		Ancestors  []string `json:"ancestors,omitempty"`
		Properties []string `json:"properties"`
	}
	return c.JSON(http.StatusOK, classResponse{
		Code:       def.Code,
		Label:      def.Label,
		Parents:    def.Parents,
		Ancestors:  reg.Ancestors(def.Code),
		Properties: reg.PropertiesForDomain(def.Code),
	})
}
