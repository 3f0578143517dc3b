package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/model"
	"github.com/iliyamo/chat-platform/internal/registry"
	"github.com/iliyamo/chat-platform/internal/repository"
)

// RoleHandler bundles dependencies for role and access-grant endpoints.
// Grant changes evict the touched room from the presence registry since its
// member set just changed.
type RoleHandler struct {
	Roles    *repository.RoleRepo
	Registry *registry.RoomRegistry
}

func NewRoleHandler(roles *repository.RoleRepo, reg *registry.RoomRegistry) *RoleHandler {
	return &RoleHandler{Roles: roles, Registry: reg}
}

type createRoleReq struct {
	Title   string            `json:"title"`
	Color   *model.ColorInput `json:"color"`
	IsAdmin bool              `json:"is_admin"`
}

type accessReq struct {
	IsModerator bool `json:"is_moderator"`
}

// Create adds a role to the server. Color defaults to white when omitted and
// is range-checked when present.
func (h *RoleHandler) Create(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	var req createRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Title) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ro, err := h.Roles.Create(ctx, repository.RoleInput{
		Title:    req.Title,
		ServerID: serverID,
		Color:    req.Color,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, ro)
}

// List returns every role on the server.
func (h *RoleHandler) List(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	roles, err := h.Roles.Find(ctx, serverID)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, roles)
}

// Get returns one role with its members and room grants.
func (h *RoleHandler) Get(c echo.Context) error {
	id, err := pathID(c, "roleId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	det, err := h.Roles.Get(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, det)
}

// Patch applies a role patch.
func (h *RoleHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "roleId")
	if err != nil {
		return err
	}
	var patch model.RolePatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if patch.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty patch"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ro, err := h.Roles.Update(ctx, id, patch)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, ro)
}

// Delete removes a role. A role still held by memberships answers 409 and
// nothing changes; the caller reassigns those members first.
func (h *RoleHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "roleId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ro, err := h.Roles.Remove(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, ro)
}

// PutAccess grants the role use of a room, or updates the moderator flag when
// the grant already exists.
func (h *RoleHandler) PutAccess(c echo.Context) error {
	roleID, err := pathID(c, "roleId")
	if err != nil {
		return err
	}
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}
	var req accessReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	grant, err := h.Roles.AddAccess(ctx, roleID, roomID, req.IsModerator)
	if errors.Is(err, repository.ErrConflict) {
		grant, err = h.Roles.SetModerator(ctx, roleID, roomID, req.IsModerator)
	}
	if err != nil {
		return repoError(c, err)
	}
	if h.Registry != nil {
		h.Registry.Evict(ctx, roomID)
	}
	return c.JSON(http.StatusOK, grant)
}

// DeleteAccess revokes the role's grant on a room.
func (h *RoleHandler) DeleteAccess(c echo.Context) error {
	roleID, err := pathID(c, "roleId")
	if err != nil {
		return err
	}
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.RemoveAccess(ctx, roleID, roomID); err != nil {
		return repoError(c, err)
	}
	if h.Registry != nil {
		h.Registry.Evict(ctx, roomID)
	}
	return c.NoContent(http.StatusNoContent)
}
