package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/receptionist-widget/internal/client"
	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
	chat "github.com/zhouzirui/receptionist-widget/internal/service/chat"
)

type nopBackend struct{}

func (nopBackend) Chat(context.Context, client.ChatRequest) (*client.Reply, error) {
	return &client.Reply{Text: "ok"}, nil
}

func (nopBackend) Reset(context.Context, string) error { return nil }

func newService() *chat.Service {
	return chat.NewService(nopBackend{}, profile.NewMemoryStore(nil), conversation.Options{SessionID: "ignored"})
}

func TestServiceGetSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	conv := svc.CreateSession(ctx, "")

	got, err := svc.GetSession(ctx, conv.SessionID())
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}
	if got != conv {
		t.Fatalf("unexpected conversation for %s", conv.SessionID())
	}
}

func TestServiceSessionsAreDistinct(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	a := svc.CreateSession(ctx, "")
	b := svc.CreateSession(ctx, "")

	if a.SessionID() == b.SessionID() {
		t.Fatalf("expected distinct session ids, both %s", a.SessionID())
	}
	if svc.Count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", svc.Count())
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.GetSession(ctx, ""); !errors.Is(err, chat.ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
}

func TestServiceCloseSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	conv := svc.CreateSession(ctx, "")

	if err := svc.CloseSession(ctx, conv.SessionID()); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	if _, err := svc.GetSession(ctx, conv.SessionID()); err == nil {
		t.Fatal("expected error for closed session")
	}
	if err := svc.CloseSession(ctx, conv.SessionID()); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceVisitorsDoNotShareProfiles(t *testing.T) {
	store := profile.NewMemoryStore(nil)
	svc := chat.NewService(nopBackend{}, store, conversation.Options{})
	ctx := context.Background()
	alice := uuid.NewString()

	a := svc.CreateSession(ctx, alice)
	if err := a.Send(ctx, "my name is Alice and I run a dental practice"); err != nil {
		t.Fatalf("Send err: %v", err)
	}

	stranger := svc.CreateSession(ctx, "")
	if got := stranger.Snapshot().Messages[0].Text; got != conversation.DefaultGreeting {
		t.Fatalf("new visitor greeted with %q", got)
	}
	if !stranger.Snapshot().Profile.Empty() {
		t.Fatalf("new visitor inherited profile %+v", stranger.Snapshot().Profile)
	}

	returning := svc.CreateSession(ctx, alice)
	want := "Welcome back, Alice! How can I help your dental practice today?"
	if got := returning.Snapshot().Messages[0].Text; got != want {
		t.Fatalf("returning visitor greeted with %q, want %q", got, want)
	}
}

func TestServiceReplacesMalformedVisitorID(t *testing.T) {
	svc := newService()
	conv := svc.CreateSession(context.Background(), "../../etc")

	if _, err := uuid.Parse(conv.VisitorID()); err != nil {
		t.Fatalf("expected generated visitor id, got %q", conv.VisitorID())
	}
}

func TestServiceCloseSessionCancelsExchange(t *testing.T) {
	started := make(chan struct{})
	backend := &blockingBackend{started: started}
	svc := chat.NewService(backend, nil, conversation.Options{})
	ctx := context.Background()
	conv := svc.CreateSession(ctx, "")

	done, err := conv.SendAsync(ctx, "hello")
	if err != nil {
		t.Fatalf("SendAsync err: %v", err)
	}
	<-started

	if err := svc.CloseSession(ctx, conv.SessionID()); err != nil {
		t.Fatalf("CloseSession err: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("exchange still running after close")
	}
	if !conv.Closed() {
		t.Fatal("expected conversation to be closed")
	}
}

func TestServiceEvictsIdleSessions(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	stale := svc.CreateSession(ctx, "")
	fresh := svc.CreateSession(ctx, "")
	watched := svc.CreateSession(ctx, "")
	_, unsubscribe := watched.Subscribe()
	defer unsubscribe()

	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(5 * time.Millisecond)

	if _, err := svc.GetSession(ctx, fresh.SessionID()); err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if n := svc.EvictIdleBefore(cutoff); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := svc.GetSession(ctx, stale.SessionID()); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected stale session evicted, got %v", err)
	}
	if !stale.Closed() {
		t.Fatal("expected evicted conversation to be closed")
	}
	if svc.Count() != 2 {
		t.Fatalf("expected 2 sessions left, got %d", svc.Count())
	}
}

func TestServiceRunStopsWithContext(t *testing.T) {
	svc := newService()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		svc.Run(ctx, time.Minute)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type blockingBackend struct {
	started chan struct{}
}

func (b *blockingBackend) Chat(ctx context.Context, _ client.ChatRequest) (*client.Reply, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (*blockingBackend) Reset(context.Context, string) error { return nil }
