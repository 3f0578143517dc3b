package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/model"
	"github.com/iliyamo/chat-platform/internal/repository"
)

// MemberHandler bundles dependencies for membership endpoints.
type MemberHandler struct {
	Members *repository.MembershipRepo
}

func NewMemberHandler(members *repository.MembershipRepo) *MemberHandler {
	return &MemberHandler{Members: members}
}

type createMemberReq struct {
	UserID     uint64  `json:"user_id"`
	RoleID     uint64  `json:"role_id"`
	Nickname   *string `json:"nickname"`
	PictureURL *string `json:"picture_url"`
}

// Create joins a user to the server under a role. Nickname and picture
// default from the user profile.
func (h *MemberHandler) Create(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	var req createMemberReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UserID == 0 || req.RoleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/role_id required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Members.Create(ctx, repository.MembershipInput{
		UserID:     req.UserID,
		RoleID:     req.RoleID,
		ServerID:   serverID,
		Nickname:   req.Nickname,
		PictureURL: req.PictureURL,
	})
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// List returns the server's memberships, optionally narrowed by ?user_id= or
// ?role_id=.
func (h *MemberHandler) List(c echo.Context) error {
	serverID, err := pathID(c, "serverId")
	if err != nil {
		return err
	}
	filter := model.MembershipFilter{ServerID: &serverID}
	if v := c.QueryParam("user_id"); v != "" {
		id, err := parseUint(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user_id"})
		}
		filter.UserID = &id
	}
	if v := c.QueryParam("role_id"); v != "" {
		id, err := parseUint(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role_id"})
		}
		filter.RoleID = &id
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	members, err := h.Members.Find(ctx, filter)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, members)
}

// Get returns one membership with its role and room access.
func (h *MemberHandler) Get(c echo.Context) error {
	id, err := pathID(c, "memberId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	det, err := h.Members.Get(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, det)
}

// Patch applies a membership patch: nickname, role, picture.
func (h *MemberHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "memberId")
	if err != nil {
		return err
	}
	var patch model.MembershipPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if patch.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty patch"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Members.Update(ctx, id, patch)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Delete removes the membership. The member's posts and reactions stay,
// anonymized.
func (h *MemberHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "memberId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Members.Remove(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}
