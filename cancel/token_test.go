package cancel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestToken_ZeroValueNeverCancels(t *testing.T) {
	var tok Token
	if tok.IsCancelled() {
		t.Fatal("zero-value token should not be cancelled")
	}
	select {
	case <-tok.Done():
		t.Fatal("zero-value token's Done channel should not close")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestToken_CancelIsIdempotent(t *testing.T) {
	var tok Token
	tok.Cancel("first")
	tok.Cancel("second")

	if !tok.IsCancelled() {
		t.Fatal("expected cancelled")
	}
	if tok.Reason() != "first" {
		t.Fatalf("reason=%q, want %q (first reason wins)", tok.Reason(), "first")
	}
}

func TestToken_OnCancel_FiresOnce(t *testing.T) {
	var tok Token
	var calls int32
	tok.OnCancel(func(reason string) { atomic.AddInt32(&calls, 1) })
	tok.Cancel("boom")
	tok.Cancel("boom again")

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("listener called %d times, want 1", got)
	}
}

func TestToken_OnCancel_AfterFire_RunsImmediately(t *testing.T) {
	var tok Token
	tok.Cancel("already done")

	var got string
	tok.OnCancel(func(reason string) { got = reason })
	if got != "already done" {
		t.Fatalf("got %q, want %q", got, "already done")
	}
}

func TestToken_Sleep_CompletesNormally(t *testing.T) {
	var tok Token
	if err := tok.Sleep(5 * time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestToken_Sleep_InterruptedByCancel(t *testing.T) {
	var tok Token
	go func() {
		time.Sleep(5 * time.Millisecond)
		tok.Cancel("shutdown")
	}()

	err := tok.Sleep(time.Second)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	var cerr *CancelledError
	if !asCancelledError(err, &cerr) {
		t.Fatalf("expected *CancelledError, got %T", err)
	}
	if cerr.Reason != "shutdown" {
		t.Fatalf("reason=%q, want %q", cerr.Reason, "shutdown")
	}
}

func TestToken_Sleep_NonPositiveDuration(t *testing.T) {
	var tok Token
	if err := tok.Sleep(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_BridgesContextCancellation(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	tok := New(ctx)
	cancelCtx()

	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("token did not observe context cancellation")
	}
	if tok.Reason() == "" {
		t.Fatal("expected a non-empty reason from context cancellation")
	}
}

func asCancelledError(err error, target **CancelledError) bool {
	ce, ok := err.(*CancelledError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
