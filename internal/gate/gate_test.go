package gate

import (
	"sync"
	"testing"
)

func pending(g *Gate) bool {
	select {
	case <-g.Wake():
		return true
	default:
		return false
	}
}

func TestSet_NoOpTransition(t *testing.T) {
	g := New(false)
	if g.Set(false) {
		t.Fatal("Set(false) on false gate reported a transition")
	}
	if pending(g) {
		t.Fatal("no-op Set produced a wake token")
	}

	g = New(true)
	if g.Set(true) {
		t.Fatal("Set(true) on true gate reported a transition")
	}
	if pending(g) {
		t.Fatal("no-op Set produced a wake token")
	}
}

func TestSet_EnterPrivateDoesNotWake(t *testing.T) {
	g := New(false)
	if !g.Set(true) {
		t.Fatal("Set(true) did not transition")
	}
	if !g.Get() {
		t.Fatal("Get() = false after Set(true)")
	}
	if pending(g) {
		t.Fatal("entering private mode produced a wake token")
	}
}

func TestSet_LeavePrivateWakes(t *testing.T) {
	g := New(true)
	if !g.Set(false) {
		t.Fatal("Set(false) did not transition")
	}
	if g.Get() {
		t.Fatal("Get() = true after Set(false)")
	}
	if !pending(g) {
		t.Fatal("leaving private mode did not produce a wake token")
	}
}

func TestSet_WakeSlotDoesNotBlock(t *testing.T) {
	g := New(true)
	// Nobody drains the wake channel; repeated exits must not block.
	for range 5 {
		g.Set(false)
		g.Set(true)
	}
	if !pending(g) {
		t.Fatal("expected one pending wake token")
	}
	if pending(g) {
		t.Fatal("wake slot held more than one token")
	}
}

func TestSet_Concurrent(t *testing.T) {
	g := New(false)
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Set(true) {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
			_ = g.Get()
		}()
	}
	wg.Wait()
	if transitions != 1 {
		t.Fatalf("transitions = %d, want exactly 1", transitions)
	}
}
