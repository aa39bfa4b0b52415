package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/galdino/barber-booking/internal/booking"
	"github.com/galdino/barber-booking/internal/config"
	"github.com/galdino/barber-booking/internal/db"
	redisclient "github.com/galdino/barber-booking/internal/redis"
)

// The worker cancels pending appointments that never got confirmed, so the
// admin view does not fill up with dead reservations. Pending rows never
// block slots, this is pure housekeeping.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("expiry-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running expiry worker in env=%s interval=%s pending_ttl=%s",
		cfg.Env, cfg.WorkerInterval, cfg.PendingTTL)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisStaffLocker(rdb, cfg.LockTTL)
	scheduler := booking.NewScheduler(repo, locker, cfg)

	runOnce(rootCtx, scheduler)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Println("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, scheduler)
		}
	}
}

func runOnce(ctx context.Context, scheduler *booking.Scheduler) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := scheduler.CancelStalePending(runCtx); err != nil {
		log.Printf("expiry run error: %v", err)
		return
	}
	log.Printf("expiry run complete in %s", time.Since(start))
}
