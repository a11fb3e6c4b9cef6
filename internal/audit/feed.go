package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"presence/internal/queue"
)

// Feed decorates a Store so every appended entry is also published onto a
// queue for external review tooling. Publication is best-effort: the
// persisted log is authoritative and a feed failure never fails the request.
type Feed struct {
	store Store
	q     queue.Queue
}

// NewFeed wraps store with queue publication.
func NewFeed(store Store, q queue.Queue) *Feed {
	return &Feed{store: store, q: q}
}

// Append persists the entry, then publishes it as JSON.
func (f *Feed) Append(ctx context.Context, e Entry) error {
	if err := f.store.Append(ctx, e); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(e)
	if err != nil {
		log.Printf("audit feed marshal failed: %v", err)
		return nil
	}
	if err := f.q.Publish(ctx, queue.Message{Type: "audit", Body: body}); err != nil {
		log.Printf("audit feed publish failed: %v", err)
	}
	return nil
}

// CountAttempts delegates to the underlying store.
func (f *Feed) CountAttempts(ctx context.Context, ip, deviceFingerprint string, since time.Time) (int, error) {
	return f.store.CountAttempts(ctx, ip, deviceFingerprint, since)
}
