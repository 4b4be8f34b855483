package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cioddi/metromesh-sub000/internal/config"
	"github.com/cioddi/metromesh-sub000/internal/game"
	"github.com/cioddi/metromesh-sub000/internal/geo"
	"github.com/cioddi/metromesh-sub000/internal/server"
	"github.com/cioddi/metromesh-sub000/internal/store"
)

// cityCenters anchors the playable maps. The selected city persists in
// the database across restarts.
var cityCenters = map[string]geo.LngLat{
	"barcelona": {Lng: 2.170302, Lat: 41.3896},
	"berlin":    {Lng: 13.404954, Lat: 52.520008},
	"tokyo":     {Lng: 139.767306, Lat: 35.681236},
	"new-york":  {Lng: -73.985428, Lat: 40.748817},
}

const defaultCity = "barcelona"

func main() {
	log.Println("Starting MetroMesh server...")

	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := config.Load()
	log.Printf("Config loaded: tick=%v, train_speed=%.0fkm/h, overload_grace=%v",
		cfg.TickInterval, cfg.TrainSpeedKmh, cfg.OverloadGrace)

	// ═══════════════════════════════════════════════════════
	// PHASE 1: Initialize Database
	// ═══════════════════════════════════════════════════════
	db, err := store.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}
	log.Println("Database initialized")

	// ═══════════════════════════════════════════════════════
	// PHASE 2: Initialize Game Engine
	// ═══════════════════════════════════════════════════════
	city, err := db.SelectedCity(context.Background(), defaultCity)
	if err != nil {
		log.Fatalf("Failed to read selected city: %v", err)
	}
	center, ok := cityCenters[city]
	if !ok {
		log.Printf("Unknown stored city %q, falling back to %s", city, defaultCity)
		city = defaultCity
		center = cityCenters[defaultCity]
	}

	engine := game.New(cfg, city, center, time.Now().UnixNano())
	log.Printf("Engine ready (city=%s)", city)

	// ═══════════════════════════════════════════════════════
	// PHASE 3: Start Simulation and Broadcast Loops
	// ═══════════════════════════════════════════════════════
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewHub(engine)
	go hub.Run()
	go engine.Run(ctx)
	go broadcastLoop(ctx, engine, hub, db)

	// ═══════════════════════════════════════════════════════
	// PHASE 4: HTTP Server
	// ═══════════════════════════════════════════════════════
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(cfg, engine, db, hub).Router(),
	}
	go func() {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// ═══════════════════════════════════════════════════════
	// PHASE 5: Graceful Shutdown
	// ═══════════════════════════════════════════════════════
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Goodbye!")
}

// broadcastLoop pushes state to websocket clients a few times per
// second and persists the final result exactly once when a game ends.
func broadcastLoop(ctx context.Context, engine *game.Engine, hub *server.Hub, db *store.DB) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	var savedResult *game.Result
	for {
		select {
		case <-ticker.C:
			hub.BroadcastState()
			if res := engine.Result(); res != nil && res != savedResult {
				if id, err := db.SaveResult(ctx, res, time.Now()); err != nil {
					log.Printf("Failed to save result: %v", err)
				} else {
					log.Printf("Saved game result %s (score=%d)", id, res.Score)
					savedResult = res
				}
			}
		case <-ctx.Done():
			log.Println("Broadcast loop stopped")
			return
		}
	}
}
