package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe endpoint. It answers "ok" without touching
// any backing store.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
