package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "key", []byte("value"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, ok, err := c.Get(ctx, "key")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(data) != "value" {
		t.Errorf("Get = %q, want %q", data, "value")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "key"); ok {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "ephemeral", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "ephemeral"); ok {
		t.Error("expired entry should miss")
	}
}

func TestNullCacheAlwaysMisses(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("null cache must never hit")
	}
}

func TestKeyerDistinguishesClasses(t *testing.T) {
	k := NewDefaultKeyer()

	stage := k.StageKey("canonicalize", "abc123")
	proposal := k.ProposalKey("abc123")
	if stage == proposal {
		t.Error("stage and proposal keys must not collide")
	}
	if k.StageKey("canonicalize", "abc123") != stage {
		t.Error("keys must be deterministic")
	}
	if k.StageKey("canonicalize", "def456") == stage {
		t.Error("different fingerprints must produce different keys")
	}
}

func TestScopedKeyerPrefixes(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "tree:deadbeef:")

	got := scoped.StageKey("pack", "abc")
	want := "tree:deadbeef:" + inner.StageKey("pack", "abc")
	if got != want {
		t.Errorf("scoped key = %q, want %q", got, want)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("permanent error retried: calls=%d err=%v", calls, err)
	}

	calls = 0
	err = RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 2 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retryable error not retried: calls=%d err=%v", calls, err)
	}
}
