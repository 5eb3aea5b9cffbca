package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/agent-orchestrator/core/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

func TestSetGetDelete(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "listing", []byte(`[{"id":"g1"}]`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, found, err := c.Get(ctx, "listing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("expected hit after Set")
	}
	if string(val) != `[{"id":"g1"}]` {
		t.Errorf("value = %s", val)
	}

	if err := c.Delete(ctx, "listing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := c.Get(ctx, "listing"); found {
		t.Error("expected miss after Delete")
	}
}

func TestGetMiss(t *testing.T) {
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	_, found, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("expected miss for absent key")
	}
}
