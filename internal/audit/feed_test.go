package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"presence/internal/queue"
)

type fakeStore struct {
	entries []Entry
	err     error
}

func (s *fakeStore) Append(ctx context.Context, e Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeStore) CountAttempts(ctx context.Context, ip, device string, since time.Time) (int, error) {
	return len(s.entries), nil
}

func TestFeedAppendPersistsAndPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeStore{}
	q := queue.NewInMemory(4)
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}

	feed := NewFeed(store, q)
	entry := Entry{Action: ActionAccepted, Severity: SeverityInfo, ActorID: "stu-1"}
	if err := feed.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("persisted entries = %d, want 1", len(store.entries))
	}

	select {
	case msg := <-msgs:
		if msg.Type != "audit" {
			t.Fatalf("message type = %s, want audit", msg.Type)
		}
		var got Entry
		if err := json.Unmarshal(msg.Body, &got); err != nil {
			t.Fatalf("unmarshal feed body: %v", err)
		}
		if got.Action != ActionAccepted || got.ActorID != "stu-1" {
			t.Fatalf("published entry = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("entry never published to feed")
	}
}

func TestFeedAppendPropagatesStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	feed := NewFeed(store, queue.NewInMemory(1))
	if err := feed.Append(context.Background(), Entry{Action: ActionSubmitAttempt}); err == nil {
		t.Fatal("store failure swallowed")
	}
}

func TestFeedPublishFailureIsBestEffort(t *testing.T) {
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Full buffer plus cancelled context forces a publish failure.
	q := queue.NewInMemory(0)
	feed := NewFeed(store, q)
	if err := feed.Append(ctx, Entry{Action: ActionAccepted}); err != nil {
		t.Fatalf("publish failure must not fail the append: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatal("entry not persisted")
	}
}
