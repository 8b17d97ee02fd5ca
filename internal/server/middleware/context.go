package middleware

import (
	"github.com/DecisionNerd/infoextract-cidoc/internal/queue"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/crm"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/source"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/validate"

	"github.com/labstack/echo/v4"
)

// App holds the shared dependencies of the handlers. Resolver, Sources,
// Store and Queue are optional; routes that need a missing one answer 503.
type App struct {
	Registry  *crm.Registry
	Validator *validate.Validator
	Severity  validate.Severity
	Resolver  queue.Resolver
	Sources   source.Loader
	Store     store.ResultStorage
	Queue     queue.Publisher
	APIKey    string
}

// AppContext is the echo context every handler receives.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware wraps each request context with app.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}

// GetApp returns the App of a request.
func GetApp(c echo.Context) *App {
	return c.(*AppContext).App
}
