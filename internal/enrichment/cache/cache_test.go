package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"valora_backend/platform/logger"
)

func TestTTL_StoresAndExpires(t *testing.T) {
	c := NewTTL[int]()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", 42, time.Minute)

	got, ok := c.Get("a")
	if !ok || got != 42 {
		t.Fatalf("Get(a) = %d, %v; want 42, true", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestTTL_CachesZeroValueAsNegativeResult(t *testing.T) {
	c := NewTTL[*string]()
	c.Set("missing", nil, time.Minute)

	got, ok := c.Get("missing")
	if !ok {
		t.Fatalf("negative entry should be a hit")
	}
	if got != nil {
		t.Fatalf("negative entry should be nil, got %v", got)
	}
}

func TestTTL_ZeroTTLIsNoop(t *testing.T) {
	c := NewTTL[int]()
	c.Set("a", 1, 0)
	if c.Len() != 0 {
		t.Fatalf("zero TTL should not store, have %d entries", c.Len())
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c := NewJSON(client, logger.New("test"))

	type payload struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	ctx := context.Background()
	if err := c.Set(ctx, "report:1", payload{Name: "centrum", Score: 87}, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	if !c.Get(ctx, "report:1", &got) {
		t.Fatalf("expected cache hit")
	}
	if got.Name != "centrum" || got.Score != 87 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	srv.FastForward(2 * time.Hour)
	if c.Get(ctx, "report:1", &got) {
		t.Fatalf("entry should have expired")
	}
}

func TestJSON_NilClientIsDisabled(t *testing.T) {
	c := NewJSON(nil, logger.New("test"))
	ctx := context.Background()

	if err := c.Set(ctx, "k", 1, time.Hour); err != nil {
		t.Fatalf("Set on disabled cache: %v", err)
	}
	var out int
	if c.Get(ctx, "k", &out) {
		t.Fatalf("disabled cache must always miss")
	}
}
