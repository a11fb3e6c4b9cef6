package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"presence/internal/audit"
	"presence/internal/config"
	"presence/internal/queue"
	"presence/internal/store"
)

// Worker tails the audit feed and surfaces elevated-severity entries, the
// review side of the attendance pipeline.
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

	q, err := feedQueue(cfg.QueueBackend, redisClient.Client)
	if err != nil {
		log.Fatalf("queue init failed: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, tailing audit feed...")
	for msg := range messages {
		if msg.Type != "audit" {
			continue
		}

		var entry audit.Entry
		if err := json.Unmarshal(msg.Body, &entry); err != nil {
			log.Printf("malformed audit message: %v", err)
			continue
		}

		switch entry.Severity {
		case audit.SeverityCritical:
			log.Printf("CRITICAL %s actor=%s ip=%s device=%s metadata=%v",
				entry.Action, entry.ActorID, entry.IP, entry.DeviceFingerprint, entry.Metadata)
		case audit.SeverityWarning:
			log.Printf("WARNING %s actor=%s metadata=%v", entry.Action, entry.ActorID, entry.Metadata)
		default:
			log.Printf("audit %s actor=%s", entry.Action, entry.ActorID)
		}
	}

	log.Println("worker stopped")
}

// feedQueue selects the queue the worker tails. The in-memory backend lives
// inside the api process, so a separate worker can never see its messages;
// refuse it instead of idling on an empty queue.
func feedQueue(backend string, client *redis.Client) (queue.Queue, error) {
	if backend == "memory" {
		return nil, fmt.Errorf("queue backend %q is in-process only; the worker requires redis", backend)
	}
	return queue.NewRedisQueue(client, "presence:audit"), nil
}
