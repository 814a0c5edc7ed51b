package middleware

import (
	"time"

	"pairspread/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests at debug level. Failed requests are logged as warnings.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", routeLabel(c)),
				logger.String("remote", c.RealIP()),
				logger.Int("status", status),
				logger.Duration("latency_ms", time.Since(start)),
			}
			if err != nil || status >= 400 {
				if err != nil {
					fields = append(fields, logger.Error(err))
				}
				log.Warn("http request", fields...)
			} else {
				log.Debug("http request", fields...)
			}
			return err
		}
	}
}
