package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	r := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), fmt.Sprintf("redis://%s", r.Addr()), ttl)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, r
}

func TestSetGetJSON(t *testing.T) {
	c, r := newTestCache(t, 0)
	ctx := context.Background()

	type standing struct {
		TeamName string `json:"teamName"`
		Rank     int    `json:"rank"`
	}
	in := []standing{{TeamName: "De Knechten", Rank: 1}}
	if err := c.SetJSON(ctx, KeyStandings, in); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	raw, err := r.Get(KeyStandings)
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	if raw != `[{"teamName":"De Knechten","rank":1}]` {
		t.Errorf("unexpected stored JSON %s", raw)
	}

	var out []standing
	found, err := c.GetJSON(ctx, KeyStandings, &out)
	if err != nil || !found {
		t.Fatalf("GetJSON = %v, %v", found, err)
	}
	if len(out) != 1 || out[0].TeamName != "De Knechten" {
		t.Errorf("unexpected value %+v", out)
	}
}

func TestGetJSON_Miss(t *testing.T) {
	c, _ := newTestCache(t, 0)
	var out []int
	found, err := c.GetJSON(context.Background(), "tourpoule:missing", &out)
	if err != nil || found {
		t.Errorf("expected miss, got found=%v err=%v", found, err)
	}
}

func TestGetJSON_Corrupt(t *testing.T) {
	c, r := newTestCache(t, 0)
	r.Set(KeyStandings, "{not json")

	var out []int
	if _, err := c.GetJSON(context.Background(), KeyStandings, &out); err == nil {
		t.Error("expected unmarshal error")
	}
}

func TestSetJSON_TTL(t *testing.T) {
	c, r := newTestCache(t, time.Minute)
	if err := c.SetJSON(context.Background(), KeyPopular, []int{1}); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	r.FastForward(2 * time.Minute)
	if r.Exists(KeyPopular) {
		t.Error("expected key to expire")
	}
}

func TestInvalidate(t *testing.T) {
	c, r := newTestCache(t, 0)
	ctx := context.Background()
	r.Set("unrelated", "keep")
	for _, key := range []string{KeyStandings, KeyTopRiders, LeaderboardKey(3)} {
		if err := c.SetJSON(ctx, key, 1); err != nil {
			t.Fatalf("SetJSON(%s): %v", key, err)
		}
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	for _, key := range []string{KeyStandings, KeyTopRiders, LeaderboardKey(3)} {
		if r.Exists(key) {
			t.Errorf("%s survived invalidation", key)
		}
	}
	if !r.Exists("unrelated") {
		t.Error("invalidation removed a key outside the prefix")
	}
}

func TestNewRedisCache_Errors(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "not a url", 0); err == nil {
		t.Error("expected parse error")
	}

	r := miniredis.RunT(t)
	addr := r.Addr()
	r.Close()
	if _, err := NewRedisCache(context.Background(), "redis://"+addr, 0); err == nil {
		t.Error("expected ping error against a closed server")
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()
	if err := c.SetJSON(ctx, KeyStandings, 1); err != nil {
		t.Fatal(err)
	}
	var out int
	if found, err := c.GetJSON(ctx, KeyStandings, &out); found || err != nil {
		t.Errorf("Nop must always miss, got %v %v", found, err)
	}
	if err := c.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
}
