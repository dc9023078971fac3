package middleware

import (
	"tenantauth/internal/infra/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics records request counts, latencies and in-flight requests per route template.
func Metrics(httpMetrics *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			done := httpMetrics.Start(c.Request().Method)

			// Render the error here so the recorded status is the one sent.
			if err := next(c); err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			done(route, c.Response().Status)

			return nil
		}
	}
}
