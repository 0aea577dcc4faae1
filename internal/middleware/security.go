package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that strips hop-by-hop headers
// from the inbound request and adds security headers to every response.
//
// The response headers are set in a Before hook so they also land on
// streamed responses, whose status is written before the handler returns.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			res := c.Response()
			res.Before(func() {
				for _, h := range hopByHopHeaders {
					res.Header().Del(h)
				}
				res.Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
				res.Header().Set(echo.HeaderXFrameOptions, "DENY")
			})

			return next(c)
		}
	}
}
