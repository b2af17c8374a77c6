package health

import (
	"net/http"

	"smartbanker/backend/internal/platform/httpjson"
)

// HTTPHandler serves GET /healthz: 200 when ready, 503 with the failing probe otherwise.
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Check(r.Context()); err != nil {
			httpjson.Error(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		httpjson.OK(w, "ok")
	}
}
