package observability

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingBuildHooks struct {
	starts    atomic.Int64
	completes atomic.Int64
}

func (h *countingBuildHooks) OnStageStart(context.Context, string) { h.starts.Add(1) }
func (h *countingBuildHooks) OnStageComplete(context.Context, string, bool, time.Duration, error) {
	h.completes.Add(1)
}
func (h *countingBuildHooks) OnRejection(context.Context, string) {}

func TestDefaultHooksAreNoop(t *testing.T) {
	Reset()

	// Must not panic.
	ctx := context.Background()
	Build().OnStageStart(ctx, "validate")
	Build().OnStageComplete(ctx, "validate", false, time.Second, nil)
	Cache().OnCacheHit(ctx, "stage")
	HTTP().OnRequest(ctx, "POST", "/v1/proposals/validate")
}

func TestSetBuildHooks(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	h := &countingBuildHooks{}
	SetBuildHooks(h)

	Build().OnStageStart(context.Background(), "pack")
	Build().OnStageComplete(context.Background(), "pack", true, 0, nil)

	if h.starts.Load() != 1 || h.completes.Load() != 1 {
		t.Errorf("hooks not invoked: starts=%d completes=%d", h.starts.Load(), h.completes.Load())
	}
}

func TestSetNilHooksKeepsCurrent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	SetBuildHooks(nil)
	if Build() == nil {
		t.Fatal("nil registration must keep the no-op default")
	}
}
