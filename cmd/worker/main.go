package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"attendtrack/internal/config"
	"attendtrack/internal/queue"
	"attendtrack/internal/store"
)

// Worker consumes check-in events and keeps per-unit daily tallies in
// Redis for dashboards, so the API never recounts them per request.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) {
		log.Fatalf("redis not reachable at %s", cfg.RedisAddr)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendtrack:checkins")
	}

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for check-in events...")
	for evt := range events {
		if evt.UnitID == "" {
			continue
		}
		if err := redisClient.IncrDailyTally(ctx, evt.UnitID, evt.When); err != nil {
			log.Printf("tally update failed for unit %s: %v", evt.UnitID, err)
			continue
		}
		log.Printf("tallied %s check-in for unit %s (participant %s, activity %s)",
			evt.Status, evt.UnitID, evt.ParticipantID, evt.ActivityID)
	}

	log.Println("worker stopped")
}
