package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const stackSize = 4 << 10

// Recovery turns a handler panic into a 500 and logs it with the route it
// happened on. http.ErrAbortHandler is re-raised so net/http still aborts the
// response.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}

				req := c.Request()
				rid, _ := c.Get(RequestIDKey).(string)
				logger.Error().
					Err(cause).
					Str("request_id", rid).
					Str("method", req.Method).
					Str("route", c.Path()).
					Str("uri", req.RequestURI).
					Str("stack", stackTrace()).
					Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(cause)
			}()
			return next(c)
		}
	}
}

func stackTrace() string {
	buf := make([]byte, stackSize)
	return string(buf[:runtime.Stack(buf, false)])
}
