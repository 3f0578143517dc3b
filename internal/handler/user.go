package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/config"
	"github.com/iliyamo/chat-platform/internal/middleware"
	"github.com/iliyamo/chat-platform/internal/model"
	"github.com/iliyamo/chat-platform/internal/repository"
)

// UserHandler bundles dependencies for user administration endpoints.
type UserHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewUserHandler(cfg config.Config, users *repository.UserRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: users}
}

type createUserReq struct {
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	PictureURL  *string `json:"picture_url"`
	IsSiteAdmin bool    `json:"is_site_admin"`
}

// Create adds a user on behalf of a site admin. Unlike self-registration this
// path may set is_site_admin.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Username, req.Password, req.PictureURL, req.IsSiteAdmin, h.Cfg.BcryptCost)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// List returns every user, or the one matching ?username= when the filter is
// present.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if username := strings.TrimSpace(c.QueryParam("username")); username != "" {
		u, err := h.Users.FindByUsername(ctx, username)
		if err != nil {
			return repoError(c, err)
		}
		return c.JSON(http.StatusOK, []model.User{u})
	}
	users, err := h.Users.FindAll(ctx)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns one user with all of their memberships.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	det, err := h.Users.Get(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, det)
}

// Patch applies a profile patch. The is_site_admin field only takes effect
// for site admin callers; a user editing their own profile cannot promote
// themselves.
func (h *UserHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	var patch model.UserPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if s := middleware.SnapshotFrom(c); s == nil || !s.IsSiteAdmin {
		patch.IsSiteAdmin = nil
	}
	if patch.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty patch"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, id, patch)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Delete removes a user. Their posts and reactions survive anonymized; the
// memberships go with them.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Remove(ctx, id)
	if err != nil {
		return repoError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
