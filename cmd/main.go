package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"peerlink/backend/internal/api/handler"
	"peerlink/backend/internal/config"
	"peerlink/backend/internal/matchhub"
	"peerlink/backend/internal/policy"
	"peerlink/backend/internal/registry"
	"peerlink/backend/internal/stats"
)

// setupRedis connects the optional cross-instance signal bridge. Returns nil
// when no address is configured; a configured but unreachable Redis is fatal.
func setupRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	log.Println("Redis connection established, signal bridge enabled.")
	return rdb
}

func main() {
	log.Println("Starting PeerLink Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	// 1. Core services: registry, policy, rooms.
	reg := registry.New(cfg.MaxClients, cfg.HistoryRetention == config.RetainByIdentity)
	pol := policy.New(reg, cfg.SkipCooldown)
	rooms := matchhub.NewRoomManager(reg, cfg.RoomGracePeriod)

	// 2. Hub, matcher, and signal relay.
	hub := matchhub.NewHub(reg, pol, rooms)
	matcher := matchhub.NewMatcher(reg, pol, rooms, hub, cfg.ForcedMatchAfter)
	hub.SetMatcher(matcher)

	var bridge *matchhub.Bridge
	if rdb := setupRedis(cfg); rdb != nil {
		bridge = matchhub.NewBridge(rdb, rooms, hub)
		go bridge.Run(context.Background())
	}
	hub.SetRelay(matchhub.NewRelay(rooms, hub, bridge))

	// 3. Background goroutines: main dispatcher, pairing retry loop, and the
	// abandoned-room sweep.
	go hub.Run()
	matcher.Run()
	rooms.Start(cfg.SweepInterval)

	// 4. Gin routing.
	r := gin.Default()
	h := handler.NewHandler(hub, stats.New(reg, rooms), cfg)

	r.GET("/session", h.GetSession)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/stats", h.GetStats)
	r.GET("/health", h.GetHealth)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
