// Package rewrite builds the header set sent to a backend.
package rewrite

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const defaultContentType = echo.MIMEApplicationJSON

// Public returns the outbound headers for the public gateway: only a
// Content-Type is forwarded, defaulting to application/json.
func Public(in http.Header) http.Header {
	ct := in.Get(echo.HeaderContentType)
	if ct == "" {
		ct = defaultContentType
	}
	out := make(http.Header, 1)
	out.Set(echo.HeaderContentType, ct)
	return out
}

// Tenant returns a copy of the inbound headers with the gateway credential
// removed, the backend's headers set and Host pointed at the backend.
func Tenant(in http.Header, inject map[string]string, host string) http.Header {
	out := in.Clone()
	if out == nil {
		out = make(http.Header)
	}
	out.Del(echo.HeaderAuthorization)
	for k, v := range inject {
		out.Set(k, v)
	}
	out.Set("Host", host)
	return out
}
