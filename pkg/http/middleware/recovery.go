package middleware

import (
	applogger "TradeSignal/pkg/logger"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

const panicStackSize = 8 << 10

// Recover turns handler panics into 500 responses rendered by the server's error handler.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	return echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize: panicStackSize,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("http handler panic",
				applogger.Error(err),
				applogger.String("route", routeLabel(c)),
				applogger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				applogger.String("stack", string(stack)),
			)
			return err
		},
	})
}
