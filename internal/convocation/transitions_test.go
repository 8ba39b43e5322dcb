package convocation_test

import (
	"testing"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/convocation"
	"github.com/fernandolim41/picopro-clt/internal/model"
)

var allStatuses = []model.ConvocationStatus{
	model.ConvocationPending,
	model.ConvocationAccepted,
	model.ConvocationRejected,
	model.ConvocationExpired,
	model.ConvocationStarted,
	model.ConvocationCompleted,
	model.ConvocationPaid,
}

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range allStatuses {
		got, err := convocation.ParseStatus(string(s))
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValues(t *testing.T) {
	for _, s := range []string{"", "PENDING", "unknown", " pending"} {
		if _, err := convocation.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error, got nil", s)
		}
	}
}

// ── IsTransitionAllowed — valid forward path ───────────────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from model.ConvocationStatus
		to   model.ConvocationStatus
	}{
		{model.ConvocationPending, model.ConvocationAccepted},
		{model.ConvocationPending, model.ConvocationRejected},
		{model.ConvocationPending, model.ConvocationExpired},
		{model.ConvocationAccepted, model.ConvocationStarted},
		{model.ConvocationStarted, model.ConvocationCompleted},
		{model.ConvocationCompleted, model.ConvocationPaid},
	}
	for _, c := range cases {
		if !convocation.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// ── IsTransitionAllowed — terminal states have no outgoing transitions ─────

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []model.ConvocationStatus{
		model.ConvocationRejected,
		model.ConvocationExpired,
		model.ConvocationPaid,
	}
	for _, from := range terminals {
		if !convocation.IsTerminal(from) {
			t.Errorf("IsTerminal(%s) should be true", from)
		}
		for _, to := range allStatuses {
			if convocation.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

// ── IsTransitionAllowed — skip-level and backwards moves are forbidden ─────

func TestIsTransitionAllowed_SkipLevelAndBackwards(t *testing.T) {
	cases := []struct {
		from model.ConvocationStatus
		to   model.ConvocationStatus
	}{
		{model.ConvocationPending, model.ConvocationStarted},    // skip accepted
		{model.ConvocationPending, model.ConvocationCompleted},  // skip two
		{model.ConvocationPending, model.ConvocationPaid},       // skip all
		{model.ConvocationAccepted, model.ConvocationCompleted}, // skip started
		{model.ConvocationAccepted, model.ConvocationRejected},  // reject only while pending
		{model.ConvocationAccepted, model.ConvocationExpired},   // expiry only while pending
		{model.ConvocationStarted, model.ConvocationPaid},       // skip completed
		{model.ConvocationAccepted, model.ConvocationPending},   // backwards
		{model.ConvocationStarted, model.ConvocationAccepted},   // backwards
		{model.ConvocationCompleted, model.ConvocationStarted},  // backwards
	}
	for _, c := range cases {
		if convocation.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_Self(t *testing.T) {
	for _, s := range allStatuses {
		if convocation.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
	}
}

// ── EffectiveStatus — derived expiry ───────────────────────────────────────

func TestEffectiveStatus_PendingPastDeadlineReadsExpired(t *testing.T) {
	offered := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	c := &model.Convocation{
		Status:             model.ConvocationPending,
		OfferedAt:          offered,
		AcceptanceDeadline: offered.Add(time.Hour),
	}

	if got := convocation.EffectiveStatus(c, offered.Add(30*time.Minute)); got != model.ConvocationPending {
		t.Errorf("before deadline: EffectiveStatus = %s, want pending", got)
	}
	// The deadline instant itself is still acceptable.
	if got := convocation.EffectiveStatus(c, offered.Add(time.Hour)); got != model.ConvocationPending {
		t.Errorf("at deadline: EffectiveStatus = %s, want pending", got)
	}
	if got := convocation.EffectiveStatus(c, offered.Add(time.Hour+time.Second)); got != model.ConvocationExpired {
		t.Errorf("past deadline: EffectiveStatus = %s, want expired", got)
	}
}

func TestEffectiveStatus_NonPendingIsUntouchedByDeadline(t *testing.T) {
	offered := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	longPast := offered.Add(48 * time.Hour)
	for _, s := range allStatuses {
		if s == model.ConvocationPending {
			continue
		}
		c := &model.Convocation{Status: s, OfferedAt: offered, AcceptanceDeadline: offered.Add(time.Hour)}
		if got := convocation.EffectiveStatus(c, longPast); got != s {
			t.Errorf("EffectiveStatus(%s, past deadline) = %s, want %s", s, got, s)
		}
	}
}
