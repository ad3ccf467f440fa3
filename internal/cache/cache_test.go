package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/finwatch/kestrel/internal/domain"
)

func TestLRUSetGet(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	val, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Errorf("got %q, want value1", val)
	}
}

func TestLRUMissReturnsNil(t *testing.T) {
	c := NewLRUCache(10)

	val, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil for miss, got %q", val)
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	c.Set(ctx, "ephemeral", []byte("x"), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	val, err := c.Get(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if val != nil {
		t.Error("expected expired entry to be gone")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.Set(ctx, fmt.Sprintf("key%d", i), []byte("v"), time.Minute)
	}

	size, capacity := c.Stats()
	if size != 3 {
		t.Errorf("size = %d, want 3", size)
	}
	if capacity != 3 {
		t.Errorf("capacity = %d, want 3", capacity)
	}

	// Oldest entries evicted first
	if val, _ := c.Get(ctx, "key0"); val != nil {
		t.Error("expected key0 to be evicted")
	}
	if val, _ := c.Get(ctx, "key4"); val == nil {
		t.Error("expected key4 to survive")
	}
}

func TestLRUDelete(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	c.Set(ctx, "key1", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if val, _ := c.Get(ctx, "key1"); val != nil {
		t.Error("expected key1 to be deleted")
	}
}

func TestDetectionRoundTrip(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	det := &domain.Detection{
		Transaction: domain.Transaction{
			ID:      "tx-001",
			Amount:  15000,
			Channel: domain.ChannelWeb,
		},
		IsFraudPredicted: true,
		FraudSource:      domain.SourceRule,
		FraudReason:      "Transaction amount exceeds threshold",
		DetectionTime:    time.Now().UTC().Truncate(time.Second),
		LatencyMs:        3,
	}

	if err := c.SetDetection(ctx, det, time.Minute); err != nil {
		t.Fatalf("set detection failed: %v", err)
	}

	got, err := c.GetDetection(ctx, "tx-001")
	if err != nil {
		t.Fatalf("get detection failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached detection")
	}
	if got.ID != "tx-001" || !got.IsFraudPredicted || got.FraudSource != domain.SourceRule {
		t.Errorf("unexpected detection: %+v", got)
	}
}

func TestGetDetectionMiss(t *testing.T) {
	c := NewLRUCache(10)

	got, err := c.GetDetection(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get detection failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for miss, got %+v", got)
	}
}

func TestIncrementCounter(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrementCounter(ctx, "velocity:payer@example.com", time.Minute)
		if err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}
}

func TestIncrementCounterWindowReset(t *testing.T) {
	c := NewLRUCache(10)
	ctx := context.Background()

	c.IncrementCounter(ctx, "k", 10*time.Millisecond)
	c.IncrementCounter(ctx, "k", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	got, err := c.IncrementCounter(ctx, "k", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if got != 1 {
		t.Errorf("count after window reset = %d, want 1", got)
	}
}

func TestCacheFactory(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 10})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}

	if _, err := New(domain.CacheConfig{Type: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown cache type")
	}
}
