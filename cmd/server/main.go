package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chat-platform/internal/config"
	"github.com/iliyamo/chat-platform/internal/database"
	"github.com/iliyamo/chat-platform/internal/handler"
	"github.com/iliyamo/chat-platform/internal/queue"
	"github.com/iliyamo/chat-platform/internal/registry"
	"github.com/iliyamo/chat-platform/internal/repository"
	"github.com/iliyamo/chat-platform/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	servers := repository.NewServerRepo(db)
	roles := repository.NewRoleRepo(db)
	rooms := repository.NewRoomRepo(db)
	members := repository.NewMembershipRepo(db)
	posts := repository.NewPostRepo(db)

	// The presence registry degrades to an in-process map when Redis is
	// down; the loader rebuilds entries from the room store on demand.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, using in-process presence registry")
	}
	reg := registry.New(rdb, func(ctx context.Context, roomID uint64) ([]uint64, error) {
		det, err := rooms.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		ids := make([]uint64, 0, len(det.Members))
		for _, m := range det.Members {
			ids = append(ids, m.MembershipID)
		}
		return ids, nil
	})

	pub := queue.NewPublisher(cfg.AMQPURL)
	go func() {
		if err := queue.StartBroadcastConsumer(cfg.AMQPURL); err != nil {
			log.Printf("broadcast consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Users:     users,
		Servers:   servers,
		Roles:     roles,
		Rooms:     rooms,
		Members:   members,
		Posts:     posts,

		Auth:    handler.NewAuthHandler(cfg, users),
		UserH:   handler.NewUserHandler(cfg, users),
		ServerH: handler.NewServerHandler(servers, rooms, reg, pub),
		RoleH:   handler.NewRoleHandler(roles, reg),
		RoomH:   handler.NewRoomHandler(rooms, reg, pub),
		MemberH: handler.NewMemberHandler(members),
		PostH:   handler.NewPostHandler(posts, pub),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
