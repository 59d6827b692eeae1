package pump

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.klb.dev/clipkeep/internal/history"
)

func TestTrySend_DropsWhenFull(t *testing.T) {
	p := New(1)
	if !p.TrySend(Loaded(nil)) {
		t.Fatal("first TrySend failed on empty pump")
	}
	if p.TrySend(Loaded(nil)) {
		t.Fatal("TrySend succeeded on full pump")
	}
	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", p.Len())
	}
}

func TestSend_PreservesOrder(t *testing.T) {
	p := New(DefaultCapacity)
	ctx := context.Background()
	want := []string{"a", "b", "c"}
	for _, s := range want {
		if err := p.Send(ctx, Captured(history.Entry{Content: s})); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	for _, s := range want {
		ev := <-p.Events()
		if ev.Kind != EntryCaptured || ev.Entry.Content != s {
			t.Fatalf("got %v %q, want entry_captured %q", ev.Kind, ev.Entry.Content, s)
		}
	}
}

func TestSend_BlocksUntilRoom(t *testing.T) {
	p := New(1)
	ctx := context.Background()
	if err := p.Send(ctx, Captured(history.Entry{Content: "first"})); err != nil {
		t.Fatal(err)
	}

	sent := make(chan error, 1)
	go func() { sent <- p.Send(ctx, Captured(history.Entry{Content: "second"})) }()

	select {
	case err := <-sent:
		t.Fatalf("Send on full pump returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	<-p.Events()
	select {
	case err := <-sent:
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not complete after consumer drained")
	}
}

func TestSend_ConsumerDetached(t *testing.T) {
	p := New(1)
	ctx := context.Background()
	_ = p.Send(ctx, Captured(history.Entry{Content: "fills"}))

	sent := make(chan error, 1)
	go func() { sent <- p.Send(ctx, Captured(history.Entry{Content: "blocked"})) }()
	time.Sleep(20 * time.Millisecond)
	p.Close()
	p.Close()

	if err := <-sent; !errors.Is(err, ErrClosed) {
		t.Fatalf("blocked Send returned %v, want ErrClosed", err)
	}
	if err := p.Send(ctx, Captured(history.Entry{})); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close returned %v, want ErrClosed", err)
	}
	if p.TrySend(Loaded(nil)) {
		t.Fatal("TrySend after Close succeeded")
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	p := New(1)
	_ = p.TrySend(Loaded(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Send(ctx, Captured(history.Entry{})); !errors.Is(err, context.Canceled) {
		t.Fatalf("Send returned %v, want context.Canceled", err)
	}
}
