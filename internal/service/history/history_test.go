package history

import (
	"testing"
	"time"
)

func TestRecordAssignsIdentityAndSentAt(t *testing.T) {
	log := NewLog()
	entry := log.Record(Entry{PersonaID: 1, Status: StatusSent, RenderedText: "hi~"})

	if entry.ID == "" {
		t.Fatal("expected generated ID")
	}
	if entry.SentAt == nil {
		t.Fatal("expected sent timestamp for sent entry")
	}
	if got := log.List(""); len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
}

func TestListNewestFirst(t *testing.T) {
	log := NewLog()
	log.Record(Entry{Subject: "older", Status: StatusSent})
	log.Record(Entry{Subject: "newer", Status: StatusSent})

	got := log.List("")
	if got[0].Subject != "newer" {
		t.Fatalf("expected newest first, got %s", got[0].Subject)
	}
}

func TestListPromotesOverdueScheduledEntries(t *testing.T) {
	log := NewLog()
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	log.nowFn = func() time.Time { return now }

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	log.Record(Entry{Subject: "due", Status: StatusScheduled, ScheduledAt: &past})
	log.Record(Entry{Subject: "pending", Status: StatusScheduled, ScheduledAt: &future})

	sent := log.List(StatusSent)
	if len(sent) != 1 || sent[0].Subject != "due" {
		t.Fatalf("expected the overdue entry to be promoted, got %v", sent)
	}
	if sent[0].SentAt == nil || !sent[0].SentAt.Equal(past) {
		t.Fatalf("expected sentAt to equal the scheduled time, got %v", sent[0].SentAt)
	}

	scheduled := log.List(StatusScheduled)
	if len(scheduled) != 1 || scheduled[0].Subject != "pending" {
		t.Fatalf("expected the future entry to stay scheduled, got %v", scheduled)
	}
}
