// Package router wires the HTTP surface: every route with its guard chain.
// The ordering inside each chain is deliberate — standing first, then
// structure — so an entity on another server only answers 403 to callers
// that already had standing to ask.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/handler"
	"github.com/iliyamo/chat-platform/internal/middleware"
	"github.com/iliyamo/chat-platform/internal/repository"
)

// Deps carries everything route registration needs.
type Deps struct {
	JWTSecret string

	Users   *repository.UserRepo
	Servers *repository.ServerRepo
	Roles   *repository.RoleRepo
	Rooms   *repository.RoomRepo
	Members *repository.MembershipRepo
	Posts   *repository.PostRepo

	Auth       *handler.AuthHandler
	UserH      *handler.UserHandler
	ServerH    *handler.ServerHandler
	RoleH      *handler.RoleHandler
	RoomH      *handler.RoomHandler
	MemberH    *handler.MemberHandler
	PostH      *handler.PostHandler
}

// Register installs every route on the Echo instance. The snapshot extractor
// runs globally; anonymous requests pass through it untouched and are
// stopped by the guards where standing is required.
func Register(e *echo.Echo, d Deps) {
	e.Use(middleware.ExtractSnapshot(d.JWTSecret, d.Users))

	e.GET("/healthz", handler.Health)

	// Credential issuance.
	ag := e.Group("/v1/auth")
	ag.POST("/register", d.Auth.Register)
	ag.POST("/token", d.Auth.Token)
	ag.GET("/update", d.Auth.Update, middleware.RequireAuth())

	// User administration. Creation is site-admin-gated; the rest is
	// self-or-site-admin.
	ug := e.Group("/v1/users")
	ug.POST("", d.UserH.Create, middleware.RequireSiteAdmin())
	ug.GET("", d.UserH.List, middleware.RequireAuth())
	ug.GET("/:userId", d.UserH.Get, middleware.RequireSelfOrSiteAdmin("userId"))
	ug.PATCH("/:userId", d.UserH.Patch, middleware.RequireSelfOrSiteAdmin("userId"))
	ug.DELETE("/:userId", d.UserH.Delete, middleware.RequireSelfOrSiteAdmin("userId"))

	// Servers. Any authenticated user may found one or browse the list.
	e.POST("/v1/servers", d.ServerH.Create, middleware.RequireAuth())
	e.GET("/v1/servers", d.ServerH.List, middleware.RequireAuth())

	// Everything below is scoped to one server that must exist.
	sg := e.Group("/v1/servers/:serverId", middleware.ServerExists(d.Servers, "serverId"))

	sg.GET("", d.ServerH.Get, middleware.RequireMember("serverId"))
	sg.PATCH("", d.ServerH.Patch, middleware.RequireServerAdmin("serverId"))
	sg.DELETE("", d.ServerH.Delete, middleware.RequireServerAdminOrSiteAdmin("serverId"))

	// Rooms.
	sg.POST("/rooms", d.RoomH.Create, middleware.RequireServerAdmin("serverId"))
	sg.GET("/rooms", d.RoomH.List, middleware.RequireMember("serverId"))
	sg.GET("/rooms/:roomId", d.RoomH.Get,
		middleware.RequireMember("serverId"),
		middleware.RoomOnServer(d.Rooms, "serverId", "roomId"))
	sg.PATCH("/rooms/:roomId", d.RoomH.Patch,
		middleware.RequireServerAdmin("serverId"),
		middleware.RoomOnServer(d.Rooms, "serverId", "roomId"))
	sg.DELETE("/rooms/:roomId", d.RoomH.Delete,
		middleware.RequireServerAdmin("serverId"),
		middleware.RoomOnServer(d.Rooms, "serverId", "roomId"))

	// Roles and access grants.
	sg.POST("/roles", d.RoleH.Create, middleware.RequireServerAdmin("serverId"))
	sg.GET("/roles", d.RoleH.List, middleware.RequireMember("serverId"))
	sg.GET("/roles/:roleId", d.RoleH.Get,
		middleware.RequireServerAdmin("serverId"),
		middleware.RoleOnServer(d.Roles, "serverId", "roleId"))
	sg.PATCH("/roles/:roleId", d.RoleH.Patch,
		middleware.RequireServerAdmin("serverId"),
		middleware.RoleOnServer(d.Roles, "serverId", "roleId"))
	sg.DELETE("/roles/:roleId", d.RoleH.Delete,
		middleware.RequireServerAdmin("serverId"),
		middleware.RoleOnServer(d.Roles, "serverId", "roleId"))
	sg.PUT("/roles/:roleId/access/:roomId", d.RoleH.PutAccess,
		middleware.RequireServerAdmin("serverId"),
		middleware.RoleOnServer(d.Roles, "serverId", "roleId"),
		middleware.RoomOnServer(d.Rooms, "serverId", "roomId"))
	sg.DELETE("/roles/:roleId/access/:roomId", d.RoleH.DeleteAccess,
		middleware.RequireServerAdmin("serverId"),
		middleware.RoleOnServer(d.Roles, "serverId", "roleId"),
		middleware.RoomOnServer(d.Rooms, "serverId", "roomId"))

	// Memberships.
	sg.POST("/members", d.MemberH.Create, middleware.RequireServerAdmin("serverId"))
	sg.GET("/members", d.MemberH.List, middleware.RequireMember("serverId"))
	sg.GET("/members/:memberId", d.MemberH.Get,
		middleware.RequireMember("serverId"),
		middleware.MembershipOnServer(d.Members, "serverId", "memberId"))
	sg.PATCH("/members/:memberId", d.MemberH.Patch,
		middleware.RequireServerAdminOrSelf("serverId", "memberId"),
		middleware.MembershipOnServer(d.Members, "serverId", "memberId"))
	sg.DELETE("/members/:memberId", d.MemberH.Delete,
		middleware.RequireServerAdminOrSelf("serverId", "memberId"),
		middleware.MembershipOnServer(d.Members, "serverId", "memberId"))

	// Posts and reactions, scoped to a room on the server.
	pg := sg.Group("/rooms/:roomId/posts",
		middleware.RequireMember("serverId"),
		middleware.RoomOnServer(d.Rooms, "serverId", "roomId"))
	pg.POST("", d.PostH.Create)
	pg.GET("", d.PostH.List)
	pg.GET("/:postId", d.PostH.Get,
		middleware.PostInRoom(d.Posts, "roomId", "postId"))
	pg.DELETE("/:postId", d.PostH.Delete,
		middleware.PostInRoom(d.Posts, "roomId", "postId"))
	pg.PUT("/:postId/reactions", d.PostH.PutReaction,
		middleware.PostInRoom(d.Posts, "roomId", "postId"))
	pg.DELETE("/:postId/reactions", d.PostH.DeleteReaction,
		middleware.PostInRoom(d.Posts, "roomId", "postId"))
}
