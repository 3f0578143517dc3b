package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/queue"
	"github.com/iliyamo/chat-platform/internal/registry"
	"github.com/iliyamo/chat-platform/internal/repository"
)

// RoomHandler bundles dependencies for room endpoints.
type RoomHandler struct {
	Rooms     *repository.RoomRepo
	Registry  *registry.RoomRegistry
	Publisher *queue.Publisher
}

func NewRoomHandler(rooms *repository.RoomRepo, reg *registry.RoomRegistry, pub *queue.Publisher) *RoomHandler {
	return &RoomHandler{Rooms: rooms, Registry: reg, Publisher: pub}
}

type createRoomReq struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type renameRoomReq struct {
	Name string `json:"name"`
}

// Create adds a room to the server. The name must be unique within the
// server; the same name on another server is fine.
func (h *RoomHandler) Create(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	var req createRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	rm, err := h.Rooms.Create(ctx, req.Name, serverID, req.Type)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, rm)
}

// List returns every room on the server.
func (h *RoomHandler) List(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rooms, err := h.Rooms.Find(ctx, serverID)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, rooms)
}

// Get returns the room with its members and posts. Reading a room also warms
// the presence registry for it.
func (h *RoomHandler) Get(c echo.Context) error {
	id, err := pathID(c, "roomId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	det, err := h.Rooms.Get(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	if h.Registry != nil {
		_, _ = h.Registry.Members(ctx, id)
	}
	return c.JSON(http.StatusOK, det)
}

// Patch renames the room.
func (h *RoomHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "roomId")
	if err != nil {
		return err
	}
	var req renameRoomReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	rm, err := h.Rooms.Update(ctx, id, req.Name)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, rm)
}

// Delete removes the room with its posts and grants, evicts its presence
// entry and broadcasts the deletion. The response carries the removed posts
// so callers can audit what went away.
func (h *RoomHandler) Delete(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	id, err := pathID(c, "roomId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	removal, err := h.Rooms.Remove(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	if h.Registry != nil {
		h.Registry.Evict(ctx, id)
	}
	if h.Publisher != nil {
		_ = h.Publisher.Publish(ctx, queue.BroadcastEvent{
			Kind:       queue.EventRoomDeleted,
			ServerID:   serverID,
			RoomID:     id,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, removal)
}
