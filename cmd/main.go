// picopro-clt matching engine
//
// Matches intermittent job postings to nearby workers and drives each
// convocation from offer to settlement:
//   - allocate(jobId)      — rank the worker pool, open time-boxed offers
//   - accept / reject      — worker response within the 1-hour window
//   - checkin / checkout   — geofenced work tracking and payment computation
//   - settle               — payroll registration, PIX transfer, documents
//
// Expired offers are swept by a cron job. Lifecycle events fan out to Redis
// pub/sub (for the Gateway) and to the in-process notification center.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fernandolim41/picopro-clt/internal/config"
	"github.com/fernandolim41/picopro-clt/internal/convocation"
	"github.com/fernandolim41/picopro-clt/internal/db"
	"github.com/fernandolim41/picopro-clt/internal/event"
	"github.com/fernandolim41/picopro-clt/internal/geocode"
	"github.com/fernandolim41/picopro-clt/internal/httpapi"
	"github.com/fernandolim41/picopro-clt/internal/matching"
	"github.com/fernandolim41/picopro-clt/internal/metrics"
	"github.com/fernandolim41/picopro-clt/internal/notification"
	"github.com/fernandolim41/picopro-clt/internal/settlement"
	"github.com/fernandolim41/picopro-clt/internal/skills"
	"github.com/fernandolim41/picopro-clt/internal/store"
	"github.com/fernandolim41/picopro-clt/internal/sweeper"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	_ = godotenv.Load() // .env is optional; real env wins

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[engine] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[engine] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[engine] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[engine] PostgreSQL connected ✓")

	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		log.Fatalf("[engine] Migrate: %v", err)
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[engine] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[engine] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[engine] Redis connected ✓")

	// ── Skill graph ──────────────────────────────────────────────────────────
	graph := skills.Default()
	if cfg.SkillGraphPath != "" {
		graph, err = skills.LoadFile(cfg.SkillGraphPath)
		if err != nil {
			log.Fatalf("[engine] Skill graph: %v", err)
		}
		log.Printf("[engine] Skill graph loaded from %s (%d skills)", cfg.SkillGraphPath, len(graph))
	}

	// ── Services ─────────────────────────────────────────────────────────────
	collector := metrics.NewCollector()
	center := notification.NewCenter(cfg.NotificationMax, cfg.NotificationTTL)
	publisher := event.NewPublisher(rdb, cfg.EventChannel)

	// The settlement trigger joins the fanout after the orchestrator exists.
	sink := event.Fanout{publisher, center}

	lifecycle := convocation.NewService(pg, pg, &sink, collector)
	allocator := matching.NewAllocator(pg, pg, pg, graph, &sink, collector)
	orchestrator := settlement.NewOrchestrator(pg, pg, pg, lifecycle,
		settlement.LocalGateway{}, settlement.LocalGateway{}, settlement.LocalGateway{},
		&sink, collector, cfg.SettlementTimeout)
	sink = append(sink, &settlement.Trigger{Orchestrator: orchestrator})

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", collector.Handler())

	h := httpapi.NewHandler(allocator, lifecycle, orchestrator, center, pg,
		geocode.NewNominatim(""))
	h.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("[engine] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[engine] HTTP server error: %v", err)
		}
	}()

	// ── Expiry sweep ─────────────────────────────────────────────────────────
	sw := sweeper.New(lifecycle, center, cfg.SweepInterval)
	if err := sw.Start(ctx); err != nil {
		log.Fatalf("[engine] Sweeper: %v", err)
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[engine] Shutting down…")
	sw.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[engine] Shutdown error: %v", err)
	}
	log.Println("[engine] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "matching-engine",
		"version": version,
	})
}
