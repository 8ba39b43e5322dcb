package notification_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/event"
	"github.com/fernandolim41/picopro-clt/internal/notification"
)

var t0 = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func publish(t *testing.T, c *notification.Center, evType event.Type, at time.Time, detail map[string]string) {
	t.Helper()
	ev := event.Event{
		ID:            "ev-" + string(evType),
		Type:          evType,
		ConvocationID: "cv-1",
		JobID:         "job-1",
		WorkerID:      "w-1",
		CompanyID:     "co-1",
		At:            at,
		Detail:        detail,
	}
	if err := c.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish(%s): %v", evType, err)
	}
}

func TestPublish_RoutesByRole(t *testing.T) {
	c := notification.NewCenter(0, 0,
		notification.WithClock(func() time.Time { return t0.Add(time.Hour) }))
	publish(t, c, event.ConvocationOffered, t0, nil)
	publish(t, c, event.ConvocationAccepted, t0.Add(time.Minute), nil)
	publish(t, c, event.WorkStarted, t0.Add(time.Hour), nil)

	worker := c.Pull("w-1")
	if len(worker) != 1 {
		t.Fatalf("worker inbox has %d entries, want 1 (only the offer)", len(worker))
	}
	if worker[0].Type != event.ConvocationOffered {
		t.Errorf("worker notification type = %s, want convocation.offered", worker[0].Type)
	}

	company := c.Pull("co-1")
	if len(company) != 2 {
		t.Fatalf("company inbox has %d entries, want 2", len(company))
	}
	// Newest first.
	if company[0].Type != event.WorkStarted || company[1].Type != event.ConvocationAccepted {
		t.Errorf("company inbox order = [%s %s], want newest first", company[0].Type, company[1].Type)
	}
}

func TestPublish_SettlementMessagesCarryAmount(t *testing.T) {
	c := notification.NewCenter(0, 0,
		notification.WithClock(func() time.Time { return t0 }))
	publish(t, c, event.SettlementSucceeded, t0, map[string]string{"totalPayment": "108.89"})

	worker := c.Pull("w-1")
	if len(worker) != 1 || !strings.Contains(worker[0].Message, "108.89") {
		t.Errorf("worker message = %v, want the paid amount in it", worker)
	}
	if company := c.Pull("co-1"); len(company) != 1 {
		t.Errorf("company inbox has %d entries, want the settlement summary", len(company))
	}
}

func TestUnreadAndMarkRead(t *testing.T) {
	c := notification.NewCenter(0, 0,
		notification.WithClock(func() time.Time { return t0.Add(time.Hour) }))
	publish(t, c, event.ConvocationOffered, t0, nil)
	publish(t, c, event.ConvocationExpired, t0.Add(time.Hour), nil)

	if got := c.UnreadCount("w-1"); got != 2 {
		t.Fatalf("UnreadCount = %d, want 2", got)
	}

	inbox := c.Pull("w-1")
	c.MarkRead("w-1", inbox[0].ID)
	if got := c.UnreadCount("w-1"); got != 1 {
		t.Errorf("UnreadCount after MarkRead = %d, want 1", got)
	}

	c.MarkAllRead("w-1")
	if got := c.UnreadCount("w-1"); got != 0 {
		t.Errorf("UnreadCount after MarkAllRead = %d, want 0", got)
	}

	// Unknown id is a no-op, not a panic.
	c.MarkRead("w-1", "nope")
	c.MarkRead("nobody", "nope")
}

func TestInboxIsBounded(t *testing.T) {
	c := notification.NewCenter(3, 0,
		notification.WithClock(func() time.Time { return t0.Add(4 * time.Minute) }))
	for i := 0; i < 5; i++ {
		publish(t, c, event.ConvocationOffered, t0.Add(time.Duration(i)*time.Minute), nil)
	}

	inbox := c.Pull("w-1")
	if len(inbox) != 3 {
		t.Fatalf("inbox has %d entries, want capped at 3", len(inbox))
	}
	// The oldest entries were dropped: the newest remaining is minute 4.
	if !inbox[0].CreatedAt.Equal(t0.Add(4 * time.Minute)) {
		t.Errorf("newest entry at %s, want %s", inbox[0].CreatedAt, t0.Add(4*time.Minute))
	}
}

func TestTTLEviction(t *testing.T) {
	c := notification.NewCenter(0, time.Hour,
		notification.WithClock(func() time.Time { return t0.Add(2 * time.Hour) }))

	publish(t, c, event.ConvocationOffered, t0, nil)                     // stale
	publish(t, c, event.ConvocationOffered, t0.Add(90*time.Minute), nil) // live

	inbox := c.Pull("w-1")
	if len(inbox) != 1 {
		t.Fatalf("inbox has %d entries, want 1 after TTL eviction", len(inbox))
	}
	if !inbox[0].CreatedAt.Equal(t0.Add(90 * time.Minute)) {
		t.Errorf("surviving entry at %s, want the live one", inbox[0].CreatedAt)
	}

	// Evict sweeps inboxes that are never read.
	publish(t, c, event.ConvocationAccepted, t0, nil) // stale, company inbox
	c.Evict(t0.Add(2 * time.Hour))
	if got := c.UnreadCount("co-1"); got != 0 {
		t.Errorf("company unread = %d, want 0 after sweep", got)
	}
}
