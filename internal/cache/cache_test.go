package cache

import (
	"testing"
	"time"
)

func TestLookupAfterStore(t *testing.T) {
	t.Parallel()

	c := New()
	key := Key{Query: "whats a good strategy for this boss", Fingerprint: "boss arena"}

	if _, ok := c.Lookup(key); ok {
		t.Fatal("lookup hit on empty cache")
	}

	c.Store(key, "Stay behind it and strike after the slam.")

	e, ok := c.Lookup(key)
	if !ok {
		t.Fatal("lookup missed a fresh entry")
	}
	if e.Answer != "Stay behind it and strike after the slam." {
		t.Errorf("answer = %q", e.Answer)
	}
}

func TestFingerprintSeparatesEntries(t *testing.T) {
	t.Parallel()

	c := New()
	c.Store(Key{Query: "where am i", Fingerprint: "ashen vale"}, "You are in the Ashen Vale.")

	if _, ok := c.Lookup(Key{Query: "where am i", Fingerprint: "boss arena"}); ok {
		t.Error("hit across different fingerprints")
	}
	if _, ok := c.Lookup(Key{Query: "where am i", Fingerprint: "ashen vale"}); !ok {
		t.Error("miss on matching fingerprint")
	}
}

func TestExpiryIsLazy(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	key := Key{Query: "q", Fingerprint: "f"}
	c.Store(key, "a")

	now = now.Add(59 * time.Second)
	if _, ok := c.Lookup(key); !ok {
		t.Fatal("entry expired early")
	}

	now = now.Add(2 * time.Second)
	if _, ok := c.Lookup(key); ok {
		t.Fatal("expired entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted on lookup, len = %d", c.Len())
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()

	now := time.Now()
	c := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))

	c.Store(Key{Query: "old", Fingerprint: "f"}, "a")
	now = now.Add(30 * time.Second)
	c.Store(Key{Query: "new", Fingerprint: "f"}, "b")
	now = now.Add(31 * time.Second)

	if evicted := c.Sweep(); evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if _, ok := c.Lookup(Key{Query: "new", Fingerprint: "f"}); !ok {
		t.Error("live entry swept")
	}
}

func TestDisabledCache(t *testing.T) {
	t.Parallel()

	c := New(WithTTL(0))
	key := Key{Query: "q", Fingerprint: "f"}

	c.Store(key, "a")
	if _, ok := c.Lookup(key); ok {
		t.Error("disabled cache returned a hit")
	}
	if c.Len() != 0 {
		t.Errorf("disabled cache stored an entry, len = %d", c.Len())
	}
}

func TestStoreReplaces(t *testing.T) {
	t.Parallel()

	c := New()
	key := Key{Query: "q", Fingerprint: "f"}
	c.Store(key, "first")
	c.Store(key, "second")

	e, ok := c.Lookup(key)
	if !ok || e.Answer != "second" {
		t.Errorf("entry = %+v, want replaced answer", e)
	}
}
