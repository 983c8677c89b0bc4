package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_AppendRequiresActorAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventTypeManualReply}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{ActorID: "op"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0) }

	a := Actor{ID: "op-1", Role: "operator", IP: "1.2.3.4"}
	if err := svc.LogManualReply(context.Background(), a, "5511987654321", "já separei"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.IPAddress != "1.2.3.4" || e.Phone != "5511987654321" || e.ID == "" {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.Type != EventTypeManualReply || !e.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestService_RecentNewestFirst(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	a := Actor{ID: "op"}
	_ = svc.LogTemplateSaved(context.Background(), a, "cross_sell", "t1")
	_ = svc.LogTemplateDeleted(context.Background(), a, "t1")
	_ = svc.LogCampaignTest(context.Background(), a, "5511", "cross_sell", "t2")

	evs, err := svc.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(evs) != 2 || evs[0].Type != EventTypeCampaignTest || evs[1].Type != EventTypeTemplateDeleted {
		t.Fatalf("unexpected order %+v", evs)
	}
}
