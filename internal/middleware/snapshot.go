// Package middleware carries the request-side half of authorization: pulling
// the credential snapshot out of the bearer token, enforcing standing with
// guards, and splitting "on another server" from "does not exist" with scope
// checks. Everything here decides; repositories enforce their own invariants
// again underneath.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/auth"
	"github.com/iliyamo/chat-platform/internal/utils"
)

// snapshotKey is the context key the verified snapshot is stored under.
const snapshotKey = "snapshot"

// lastSeenToucher is the slice of the user store the snapshot middleware
// needs: marking the caller as seen on every authenticated request.
type lastSeenToucher interface {
	TouchLastSeen(ctx context.Context, id uint64) error
}

// ExtractSnapshot returns middleware that verifies a Bearer credential when
// one is presented and stores the embedded snapshot in the request context.
// A request without an Authorization header passes through anonymously; the
// guards downstream decide whether that is enough. A malformed or badly
// signed token is rejected outright with 401.
//
// Every verified request also advances the user's last_on timestamp. The
// touch is best-effort; a failure never blocks the request.
func ExtractSnapshot(secret string, users lastSeenToucher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return next(c)
			}
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")
			snap, err := utils.ParseSnapshotToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(snapshotKey, &snap)

			if users != nil {
				ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
				_ = users.TouchLastSeen(ctx, snap.UserID)
				cancel()
			}
			return next(c)
		}
	}
}

// SnapshotFrom returns the verified snapshot stored by ExtractSnapshot, or
// nil for an anonymous request.
func SnapshotFrom(c echo.Context) *auth.Snapshot {
	if s, ok := c.Get(snapshotKey).(*auth.Snapshot); ok {
		return s
	}
	return nil
}

// paramID parses a numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
