package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/auth"
)

// The guards enforce standing, never structure: a caller that lacks the
// required capability gets 401 regardless of whether the target exists.
// Whether an entity lives on another server is the scope middleware's
// question and answers 403/404 there.

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
}

// RequireAuth admits any request carrying a verified snapshot.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if SnapshotFrom(c) == nil {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}

// RequireSiteAdmin admits only site admins.
func RequireSiteAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := SnapshotFrom(c)
			if s == nil || !s.IsSiteAdmin {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}

// RequireSelfOrSiteAdmin admits the user named by the path parameter and any
// site admin. Gates user-level reads and mutations.
func RequireSelfOrSiteAdmin(userParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := paramID(c, userParam)
			if !ok {
				return badParam(c, userParam)
			}
			if !auth.IsSelfOrSiteAdmin(SnapshotFrom(c), userID) {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}

// RequireMember admits callers whose snapshot claims a membership on the
// server named by the path parameter. Site admins qualify everywhere.
func RequireMember(serverParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			serverID, ok := paramID(c, serverParam)
			if !ok {
				return badParam(c, serverParam)
			}
			if !auth.IsMember(SnapshotFrom(c), serverID) {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}

// RequireServerAdmin admits only callers whose claimed role on the server
// carries admin standing. Site admin alone is not enough here; the combined
// rule is RequireServerAdminOrSiteAdmin.
func RequireServerAdmin(serverParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			serverID, ok := paramID(c, serverParam)
			if !ok {
				return badParam(c, serverParam)
			}
			if !auth.IsServerAdmin(SnapshotFrom(c), serverID) {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}

// RequireServerAdminOrSiteAdmin is the standing needed to destroy or
// reconfigure a server.
func RequireServerAdminOrSiteAdmin(serverParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			serverID, ok := paramID(c, serverParam)
			if !ok {
				return badParam(c, serverParam)
			}
			if !auth.IsServerOrSiteAdmin(SnapshotFrom(c), serverID) {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}

// RequireServerAdminOrSelf implements the self-or-admin rule on membership
// operations: a server admin may act on any membership of the server, a
// plain member only on their own.
func RequireServerAdminOrSelf(serverParam, memberParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			serverID, ok := paramID(c, serverParam)
			if !ok {
				return badParam(c, serverParam)
			}
			memberID, ok := paramID(c, memberParam)
			if !ok {
				return badParam(c, memberParam)
			}
			if !auth.CanActOnMembership(SnapshotFrom(c), serverID, memberID) {
				return unauthorized(c)
			}
			return next(c)
		}
	}
}
