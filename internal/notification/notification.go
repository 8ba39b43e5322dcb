// Package notification turns lifecycle events into per-recipient inbox
// messages. The inbox is an in-process ring: bounded per recipient, entries
// evicted after a TTL, best-effort by design. Anything that must survive a
// restart belongs in the store, not here.
package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fernandolim41/picopro-clt/internal/event"
)

const (
	DefaultMaxPerRecipient = 100
	DefaultTTL             = 30 * 24 * time.Hour
)

// Notification is one inbox entry for a worker or company.
type Notification struct {
	ID            string     `json:"id"`
	Recipient     string     `json:"recipient"`
	Type          event.Type `json:"type"`
	Message       string     `json:"message"`
	ConvocationID string     `json:"convocationId"`
	JobID         string     `json:"jobId"`
	CreatedAt     time.Time  `json:"createdAt"`
	Read          bool       `json:"read"`
}

// Center routes lifecycle events to recipient inboxes. It implements
// event.Sink, so it is wired into the same fanout as the external
// publishers.
type Center struct {
	mu      sync.Mutex
	inboxes map[string][]Notification
	max     int
	ttl     time.Duration
	now     func() time.Time
}

// Option tweaks a Center at construction time.
type Option func(*Center)

// WithClock overrides the wall clock used for TTL eviction.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// NewCenter returns a Center keeping at most max entries per recipient for
// at most ttl. Non-positive arguments fall back to the defaults.
func NewCenter(max int, ttl time.Duration, opts ...Option) *Center {
	if max <= 0 {
		max = DefaultMaxPerRecipient
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Center{
		inboxes: make(map[string][]Notification),
		max:     max,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish implements event.Sink. Events that carry no message for any
// recipient are dropped silently.
func (c *Center) Publish(_ context.Context, ev event.Event) error {
	for recipient, msg := range messagesFor(ev) {
		c.push(Notification{
			ID:            uuid.NewString(),
			Recipient:     recipient,
			Type:          ev.Type,
			Message:       msg,
			ConvocationID: ev.ConvocationID,
			JobID:         ev.JobID,
			CreatedAt:     ev.At,
		})
	}
	return nil
}

// Pull returns the recipient's live notifications, newest first. Expired
// entries are evicted on the way out.
func (c *Center) Pull(recipient string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(recipient, c.now())

	inbox := c.inboxes[recipient]
	out := make([]Notification, len(inbox))
	for i, n := range inbox {
		out[len(inbox)-1-i] = n
	}
	return out
}

// UnreadCount returns how many live notifications the recipient has not
// read yet.
func (c *Center) UnreadCount(recipient string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(recipient, c.now())

	count := 0
	for _, n := range c.inboxes[recipient] {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead marks one notification as read. Unknown ids are ignored.
func (c *Center) MarkRead(recipient, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbox := c.inboxes[recipient]
	for i := range inbox {
		if inbox[i].ID == id {
			inbox[i].Read = true
			return
		}
	}
}

// MarkAllRead marks every notification in the recipient's inbox as read.
func (c *Center) MarkAllRead(recipient string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbox := c.inboxes[recipient]
	for i := range inbox {
		inbox[i].Read = true
	}
}

// Evict drops expired entries from every inbox. Called by the sweeper so
// idle inboxes do not hold memory until their next read.
func (c *Center) Evict(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for recipient := range c.inboxes {
		c.evictLocked(recipient, now)
	}
}

func (c *Center) push(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inbox := append(c.inboxes[n.Recipient], n)
	if len(inbox) > c.max {
		inbox = inbox[len(inbox)-c.max:]
	}
	c.inboxes[n.Recipient] = inbox
}

func (c *Center) evictLocked(recipient string, now time.Time) {
	inbox := c.inboxes[recipient]
	cutoff := now.Add(-c.ttl)
	kept := inbox[:0]
	for _, n := range inbox {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		delete(c.inboxes, recipient)
		return
	}
	c.inboxes[recipient] = kept
}

// messagesFor maps one lifecycle event to the recipients who should hear
// about it. Workers hear about offers and money; companies hear about the
// worker's responses and progress.
func messagesFor(ev event.Event) map[string]string {
	out := make(map[string]string, 2)
	switch ev.Type {
	case event.ConvocationOffered:
		out[ev.WorkerID] = "You have a new job offer. You have 1 hour to respond."
	case event.ConvocationAccepted:
		out[ev.CompanyID] = "A worker accepted your convocation."
	case event.ConvocationRejected:
		out[ev.CompanyID] = "A worker declined your convocation."
	case event.ConvocationExpired:
		out[ev.CompanyID] = "A convocation expired without a response."
		out[ev.WorkerID] = "A job offer expired before you responded."
	case event.WorkStarted:
		out[ev.CompanyID] = "The worker checked in and started working."
	case event.WorkCompleted:
		out[ev.CompanyID] = "The worker checked out. Settlement is underway."
	case event.SettlementSucceeded:
		total := ev.Detail["totalPayment"]
		if total == "" {
			out[ev.WorkerID] = "Your payment was sent."
		} else {
			out[ev.WorkerID] = fmt.Sprintf("Your payment of R$ %s was sent.", total)
		}
		out[ev.CompanyID] = "Settlement completed: payroll registered, payment sent, documents issued."
	case event.SettlementFailed:
		out[ev.CompanyID] = "Settlement failed on: " + ev.Detail["failedSteps"] + ". It will be retried."
	}
	return out
}
