package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/middleware"
	"github.com/iliyamo/chat-platform/internal/model"
	"github.com/iliyamo/chat-platform/internal/queue"
	"github.com/iliyamo/chat-platform/internal/registry"
	"github.com/iliyamo/chat-platform/internal/repository"
)

// ServerHandler bundles dependencies for server endpoints. The publisher and
// registry are presentation-side collaborators: deletions broadcast an event
// and drop the presence cache for every room that went with the server.
type ServerHandler struct {
	Servers   *repository.ServerRepo
	Rooms     *repository.RoomRepo
	Registry  *registry.RoomRegistry
	Publisher *queue.Publisher
}

func NewServerHandler(servers *repository.ServerRepo, rooms *repository.RoomRepo, reg *registry.RoomRegistry, pub *queue.Publisher) *ServerHandler {
	return &ServerHandler{Servers: servers, Rooms: rooms, Registry: reg, Publisher: pub}
}

type createServerReq struct {
	Name       string  `json:"name"`
	PictureURL *string `json:"picture_url"`
}

// Create founds a server: the row, the two seed roles, the founder's admin
// membership, the default room and its moderator grant, all or nothing.
func (h *ServerHandler) Create(c echo.Context) error {
	s := middleware.SnapshotFrom(c)
	if s == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createServerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Servers.Bootstrap(ctx, req.Name, req.PictureURL, s.UserID)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// List returns all servers with member counts, or only those matching the
// ?name= filter.
func (h *ServerHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if name := strings.TrimSpace(c.QueryParam("name")); name != "" {
		servers, err := h.Servers.FindByName(ctx, name)
		if err != nil {
			return repoError(c, err)
		}
		return c.JSON(http.StatusOK, servers)
	}
	servers, err := h.Servers.FindAll(ctx)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, servers)
}

// Get returns the full server detail: rooms, roles and members.
func (h *ServerHandler) Get(c echo.Context) error {
	id, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	det, err := h.Servers.Get(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, det)
}

// Patch renames the server or swaps its picture.
func (h *ServerHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	var patch model.ServerPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if patch.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty patch"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Servers.Update(ctx, id, patch)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Delete removes the server and everything scoped to it, then evicts the
// presence cache for its former rooms and broadcasts the deletion. Broadcast
// failure never fails the request; the authoritative state already changed.
func (h *ServerHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rooms, err := h.Rooms.Find(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	s, err := h.Servers.Remove(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	if h.Registry != nil {
		for _, rm := range rooms {
			h.Registry.Evict(ctx, rm.ID)
		}
	}
	if h.Publisher != nil {
		_ = h.Publisher.Publish(ctx, queue.BroadcastEvent{
			Kind:       queue.EventServerDeleted,
			ServerID:   id,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, s)
}
