package input

import (
	"context"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, l *Listener) []Event {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	var events []Event
	for ev := range l.Events() {
		events = append(events, ev)
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	return events
}

func TestListenerToggle(t *testing.T) {
	t.Parallel()

	l := NewListener(strings.NewReader("  q"))
	events := collect(t, l)

	want := []Kind{KindPress, KindRelease, KindQuit}
	if len(events) != len(want) {
		t.Fatalf("events = %d, want %d", len(events), len(want))
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Errorf("event %d = %v, want %v", i, events[i].Kind, k)
		}
	}
}

func TestListenerIgnoresOtherKeys(t *testing.T) {
	t.Parallel()

	l := NewListener(strings.NewReader("abc q"))
	events := collect(t, l)

	want := []Kind{KindPress, KindQuit}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want kinds %v", events, want)
	}
}

func TestListenerCtrlCQuits(t *testing.T) {
	t.Parallel()

	l := NewListener(strings.NewReader("\x03"))
	events := collect(t, l)

	if len(events) != 1 || events[0].Kind != KindQuit {
		t.Fatalf("events = %v, want one quit", events)
	}
}

func TestListenerEOFClosesChannel(t *testing.T) {
	t.Parallel()

	l := NewListener(strings.NewReader(""))

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	select {
	case _, ok := <-l.Events():
		if ok {
			t.Fatal("unexpected event before close")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed on EOF")
	}
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// stuckReader blocks every Read until unblock closes, like a raw terminal
// with no keys pressed.
type stuckReader struct {
	unblock chan struct{}
}

func (r *stuckReader) Read([]byte) (int, error) {
	<-r.unblock
	return 0, context.Canceled
}

func TestListenerCancelUnblocksRun(t *testing.T) {
	t.Parallel()

	r := &stuckReader{unblock: make(chan struct{})}
	t.Cleanup(func() { close(r.unblock) })

	l := NewListener(r)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run still blocked after cancellation")
	}
	if _, ok := <-l.Events(); ok {
		t.Error("unexpected event after cancellation")
	}
}

func TestListenerCustomKeys(t *testing.T) {
	t.Parallel()

	l := NewListener(strings.NewReader("ttx"), WithTalkKey('t'), WithQuitKey('x'))
	events := collect(t, l)

	want := []Kind{KindPress, KindRelease, KindQuit}
	for i, k := range want {
		if events[i].Kind != k {
			t.Errorf("event %d = %v, want %v", i, events[i].Kind, k)
		}
	}
}
