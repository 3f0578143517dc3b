package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/auth"
	"github.com/iliyamo/chat-platform/internal/middleware"
	"github.com/iliyamo/chat-platform/internal/queue"
	"github.com/iliyamo/chat-platform/internal/repository"
)

// PostHandler bundles dependencies for post and reaction endpoints.
type PostHandler struct {
	Posts     *repository.PostRepo
	Publisher *queue.Publisher
}

func NewPostHandler(posts *repository.PostRepo, pub *queue.Publisher) *PostHandler {
	return &PostHandler{Posts: posts, Publisher: pub}
}

type createPostReq struct {
	Content      string  `json:"content"`
	ThreadedFrom *uint64 `json:"threaded_from"`
}

type reactionReq struct {
	Type string `json:"type"`
}

// callerMembership resolves the caller's membership on the server named in
// the path. Posting and reacting attribute to a membership, so a site admin
// without one cannot author content here; the returned error is a 401 the
// caller must propagate unchanged.
func callerMembership(c echo.Context) (auth.SnapshotMembership, error) {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return auth.SnapshotMembership{}, err
	}
	s := middleware.SnapshotFrom(c)
	if s == nil {
		return auth.SnapshotMembership{}, echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	m, ok := s.MembershipOn(serverID)
	if !ok {
		return auth.SnapshotMembership{}, echo.NewHTTPError(http.StatusUnauthorized, echo.Map{"error": "membership required"})
	}
	return m, nil
}

// Create appends a post to the room, attributed to the caller's membership,
// and broadcasts it.
func (h *PostHandler) Create(c echo.Context) error {
	m, err := callerMembership(c)
	if err != nil {
		return err
	}
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	var req createPostReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Posts.Create(ctx, repository.PostInput{
		MemberID:     m.ID,
		RoomID:       roomID,
		Content:      req.Content,
		ThreadedFrom: req.ThreadedFrom,
	})
	if err != nil {
		return repoError(c, err)
	}
	if h.Publisher != nil {
		_ = h.Publisher.Publish(ctx, queue.BroadcastEvent{
			Kind:       queue.EventPostCreated,
			ServerID:   serverID,
			RoomID:     roomID,
			PostID:     p.ID,
			MemberID:   p.MemberID,
			Content:    p.Content,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusCreated, p)
}

// List returns the room's feed with authors and reactions joined in.
func (h *PostHandler) List(c echo.Context) error {
	roomID, err := pathID(c, "roomId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	posts, err := h.Posts.Find(ctx, roomID)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, posts)
}

// Get returns one post with its reactions.
func (h *PostHandler) Get(c echo.Context) error {
	id, err := pathID(c, "postId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Posts.Get(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete removes a post. Allowed for its author, a server admin, or a site
// admin; anyone else answers 401.
func (h *PostHandler) Delete(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	id, err := pathID(c, "postId")
	if err != nil {
		return err
	}
	s := middleware.SnapshotFrom(c)
	if s == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if !s.IsSiteAdmin && !auth.IsServerAdmin(s, serverID) {
		author, err := h.Posts.AuthorOf(ctx, id)
		if err != nil {
			return repoError(c, err)
		}
		m, ok := s.MembershipOn(serverID)
		if !ok || author == nil || *author != m.ID {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
	}

	p, err := h.Posts.Remove(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// PutReaction records the caller's reaction on the post. Reacting twice with
// the same type answers 409.
func (h *PostHandler) PutReaction(c echo.Context) error {
	m, err := callerMembership(c)
	if err != nil {
		return err
	}
	postID, err := pathID(c, "postId")
	if err != nil {
		return err
	}
	var req reactionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Type) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	re, err := h.Posts.AddReaction(ctx, postID, m.ID, req.Type)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, re)
}

// DeleteReaction withdraws the caller's reaction of the given type.
func (h *PostHandler) DeleteReaction(c echo.Context) error {
	m, err := callerMembership(c)
	if err != nil {
		return err
	}
	postID, err := pathID(c, "postId")
	if err != nil {
		return err
	}
	var req reactionReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Type) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "type required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Posts.RemoveReaction(ctx, postID, m.ID, req.Type); err != nil {
		return repoError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
