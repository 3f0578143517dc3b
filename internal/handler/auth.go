package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/config"
	"github.com/iliyamo/chat-platform/internal/middleware"
	"github.com/iliyamo/chat-platform/internal/repository"
	"github.com/iliyamo/chat-platform/internal/utils"
)

// AuthHandler bundles dependencies for credential issuance.
type AuthHandler struct {
	Cfg   config.Config
	Users *repository.UserRepo
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users}
}

type registerReq struct {
	Username   string  `json:"username"`
	Password   string  `json:"password"`
	PictureURL *string `json:"picture_url"`
}

type tokenReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Register creates a user and immediately mints a credential snapshot for
// them. Self-registration never grants site admin; that flag is only settable
// through the site-admin-gated user endpoints.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, req.Username, req.Password, req.PictureURL, false, h.Cfg.BcryptCost)
	if err != nil {
		return repoError(c, err)
	}
	snap, err := h.Users.SnapshotFor(ctx, u.ID)
	if err != nil {
		return repoError(c, err)
	}
	tok, err := utils.NewSnapshotToken(h.Cfg.JWTSecret, snap, h.Cfg.TokenTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user":  u,
		"token": tokenResp{Token: tok.Token, Expires: tok.Exp},
	})
}

// Token verifies a username/password pair and returns a signed credential
// snapshot capturing the caller's standing as of now.
func (h *AuthHandler) Token(c echo.Context) error {
	var req tokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	snap, err := h.Users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return repoError(c, err)
	}
	tok, err := utils.NewSnapshotToken(h.Cfg.JWTSecret, snap, h.Cfg.TokenTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp})
}

// Update re-mints the caller's snapshot from current state. This is the only
// way a snapshot gets fresher: standing claimed in the old token remains
// honored until the client swaps it for this one.
func (h *AuthHandler) Update(c echo.Context) error {
	s := middleware.SnapshotFrom(c)
	if s == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	snap, err := h.Users.SnapshotFor(ctx, s.UserID)
	if err != nil {
		return repoError(c, err)
	}
	tok, err := utils.NewSnapshotToken(h.Cfg.JWTSecret, snap, h.Cfg.TokenTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp})
}
