// Package input turns keyboard bytes into push-to-talk events. The terminal
// cannot report key-up, so the talk key toggles: the first press emits
// [KindPress], the next emits [KindRelease]. The quit key emits [KindQuit]
// and stops the listener.
package input

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/term"
)

// Kind identifies the push-to-talk event type.
type Kind int

const (
	// KindPress marks the start of a recording window.
	KindPress Kind = iota

	// KindRelease marks the end of a recording window.
	KindRelease

	// KindQuit requests shutdown of the whole process.
	KindQuit
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindPress:
		return "press"
	case KindRelease:
		return "release"
	case KindQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Event is one push-to-talk event with the time it was read.
type Event struct {
	Kind Kind
	At   time.Time
}

const (
	// DefaultTalkKey is the space bar.
	DefaultTalkKey = ' '

	// DefaultQuitKey is 'q'. Ctrl-C (0x03) always quits regardless of this
	// setting, since raw mode disables the terminal's own interrupt handling.
	DefaultQuitKey = 'q'
)

// Listener reads single bytes from a reader and emits [Event] values. Run it
// over a raw-mode terminal via [Raw]; tests feed it any io.Reader.
type Listener struct {
	r       io.Reader
	talkKey byte
	quitKey byte
	logger  *slog.Logger
	events  chan Event
}

// Option configures a [Listener] during construction.
type Option func(*Listener)

// WithTalkKey overrides the push-to-talk toggle key.
func WithTalkKey(b byte) Option {
	return func(l *Listener) { l.talkKey = b }
}

// WithQuitKey overrides the quit key.
func WithQuitKey(b byte) Option {
	return func(l *Listener) { l.quitKey = b }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// NewListener creates a Listener over r.
func NewListener(r io.Reader, opts ...Option) *Listener {
	l := &Listener{
		r:       r,
		talkKey: DefaultTalkKey,
		quitKey: DefaultQuitKey,
		logger:  slog.Default(),
		events:  make(chan Event, 8),
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With("component", "input")
	return l
}

// Events returns the channel Run emits on. It is closed when Run returns.
func (l *Listener) Events() <-chan Event {
	return l.events
}

// keyRead is one byte off the key source, or the error that ended reading.
type keyRead struct {
	b   byte
	err error
}

// Run emits events until the quit key, EOF, or ctx cancellation. Reads
// happen on their own goroutine so cancellation returns immediately; that
// goroutine stays parked in Read until the next byte arrives or the reader
// closes, which is harmless for a process-lifetime stdin.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.events)

	reads := make(chan keyRead)
	go func() {
		defer close(reads)
		buf := make([]byte, 1)
		for {
			_, err := l.r.Read(buf)
			select {
			case reads <- keyRead{b: buf[0], err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	held := false
	for {
		var r keyRead
		select {
		case <-ctx.Done():
			return nil
		case read, ok := <-reads:
			if !ok {
				return nil
			}
			r = read
		}
		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				return nil
			}
			return r.err
		}

		switch r.b {
		case l.quitKey, 0x03:
			l.send(ctx, Event{Kind: KindQuit, At: time.Now()})
			return nil
		case l.talkKey:
			kind := KindPress
			if held {
				kind = KindRelease
			}
			held = !held
			l.send(ctx, Event{Kind: kind, At: time.Now()})
		default:
			l.logger.Debug("ignoring key", "byte", r.b)
		}
	}
}

func (l *Listener) send(ctx context.Context, ev Event) {
	select {
	case l.events <- ev:
	case <-ctx.Done():
	}
}

// Raw switches the terminal identified by fd into raw mode and returns a
// restore function. Call restore before the process exits or the shell is
// left in raw mode.
func Raw(fd int) (restore func() error, err error) {
	st, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() error { return term.Restore(fd, st) }, nil
}

// IsTerminal reports whether fd is attached to a terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}
