package middleware

import (
	applogger "TradeSignal/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// RequestID tags every request and response with X-Request-Id, keeping one sent by the client.
func RequestID() echo.MiddlewareFunc {
	return echomw.RequestID()
}

// RequestLogging logs every request at debug level. Failures are logged by Metrics.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRemoteIP:  true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			l.Debug("http request",
				applogger.String("method", v.Method),
				applogger.String("uri", v.URI),
				applogger.String("remote", v.RemoteIP),
				applogger.String("request_id", v.RequestID),
				applogger.Int("status", v.Status),
				applogger.Duration("latency", v.Latency),
			)
			return nil
		},
	})
}
