package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/repository"
)

// The scope checks make the structural three-way split: an entity reached
// through the wrong server's URL answers 403 because it exists, just not
// here; an entity that does not exist at all answers 404. Standing was
// already settled by the guards before these run.

// serverScoped is any store that can name the server owning one of its rows.
type serverScoped interface {
	ServerOf(ctx context.Context, id uint64) (uint64, error)
}

// serverLookup is the slice of the server store the scope checks need.
type serverLookup interface {
	Exists(ctx context.Context, id uint64) error
}

// roomScoped is any store that can name the room holding one of its rows.
type roomScoped interface {
	RoomOf(ctx context.Context, id uint64) (uint64, error)
}

const scopeTimeout = 3 * time.Second

// ServerExists rejects requests addressing a server id with no row behind it.
func ServerExists(servers serverLookup, serverParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			serverID, ok := paramID(c, serverParam)
			if !ok {
				return badParam(c, serverParam)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), scopeTimeout)
			defer cancel()
			if err := servers.Exists(ctx, serverID); err != nil {
				if errors.Is(err, repository.ErrServerNotFound) {
					return c.JSON(http.StatusNotFound, echo.Map{"error": "server not found"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
			}
			return next(c)
		}
	}
}

// onServer builds the shared structural check: the entity named by idParam
// must belong to the server named by serverParam.
func onServer(store serverScoped, serverParam, idParam, label string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			serverID, ok := paramID(c, serverParam)
			if !ok {
				return badParam(c, serverParam)
			}
			id, ok := paramID(c, idParam)
			if !ok {
				return badParam(c, idParam)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), scopeTimeout)
			defer cancel()
			owner, err := store.ServerOf(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrRoleNotFound) ||
					errors.Is(err, repository.ErrRoomNotFound) ||
					errors.Is(err, repository.ErrMembershipNotFound) {
					return c.JSON(http.StatusNotFound, echo.Map{"error": label + " not found"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
			}
			if owner != serverID {
				return c.JSON(http.StatusForbidden, echo.Map{"error": label + " belongs to another server"})
			}
			return next(c)
		}
	}
}

// RoleOnServer rejects a role addressed through the wrong server: 403 when it
// lives elsewhere, 404 when it does not exist.
func RoleOnServer(roles serverScoped, serverParam, roleParam string) echo.MiddlewareFunc {
	return onServer(roles, serverParam, roleParam, "role")
}

// RoomOnServer is the room-flavored structural check.
func RoomOnServer(rooms serverScoped, serverParam, roomParam string) echo.MiddlewareFunc {
	return onServer(rooms, serverParam, roomParam, "room")
}

// MembershipOnServer is the membership-flavored structural check.
func MembershipOnServer(members serverScoped, serverParam, memberParam string) echo.MiddlewareFunc {
	return onServer(members, serverParam, memberParam, "member")
}

// PostInRoom rejects a post addressed through the wrong room: 403 when it
// lives in another room, 404 when it does not exist. Without it a member of
// one server could reach any post anywhere by routing through a room they do
// have standing on.
func PostInRoom(posts roomScoped, roomParam, postParam string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roomID, ok := paramID(c, roomParam)
			if !ok {
				return badParam(c, roomParam)
			}
			postID, ok := paramID(c, postParam)
			if !ok {
				return badParam(c, postParam)
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), scopeTimeout)
			defer cancel()
			owner, err := posts.RoomOf(ctx, postID)
			if err != nil {
				if errors.Is(err, repository.ErrPostNotFound) {
					return c.JSON(http.StatusNotFound, echo.Map{"error": "post not found"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
			}
			if owner != roomID {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "post belongs to another room"})
			}
			return next(c)
		}
	}
}
