package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKey_Normalizes(t *testing.T) {
	a := Key("claim", "The Dow  closed above 30,000")
	b := Key("claim", "  the dow closed ABOVE 30,000 ")
	if a != b {
		t.Errorf("expected equal keys, got %s and %s", a, b)
	}
	if a == Key("review", "The Dow closed above 30,000") {
		t.Error("expected namespaces to separate keys")
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	_ = c.Set("k", []byte("v"), 0)
	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Errorf("expected hit, got %q %v", val, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 item, got %d", c.Len())
	}

	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("claim", "statement")

	if err := c.Set(key, []byte("payload"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if val, ok := c.Get(key); !ok || string(val) != "payload" {
		t.Errorf("expected hit, got %q %v", val, ok)
	}

	if err := c.Set(key, []byte("stale"), time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("expected expired entry file to be removed")
	}

	if err := c.Delete(key); err != nil {
		t.Errorf("delete of missing entry: %v", err)
	}
}

func TestDiskCache_Sharded(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key("claim", "statement")

	_ = c.Set(key, []byte("x"), 0)

	shard := key[len(key)-64 : len(key)-62]
	matches, _ := filepath.Glob(filepath.Join(dir, shard, "*.cache"))
	if len(matches) != 1 {
		t.Errorf("expected one entry in shard %s, got %v", shard, matches)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	key := Key("claim", "statement")

	first := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := first.Set(key, []byte("answer"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A fresh process only has the disk layer
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	if val, ok := second.Get(key); !ok || string(val) != "answer" {
		t.Fatalf("expected disk hit, got %q %v", val, ok)
	}
	if val, ok := second.memory.Get(key); !ok || string(val) != "answer" {
		t.Error("expected disk hit to be promoted to memory")
	}

	if err := second.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := second.Get(key); ok {
		t.Error("expected miss after clear")
	}
}

func TestLayeredCache_MemoryOnly(t *testing.T) {
	c := NewLayeredCache(time.Minute, "", 0)
	_ = c.Set("k", []byte("v"), 0)
	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Errorf("expected hit, got %q %v", val, ok)
	}
	if err := c.Delete("k"); err != nil {
		t.Errorf("delete: %v", err)
	}
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	type answer struct {
		IsTrue bool    `json:"is_true"`
		Conf   float64 `json:"conf"`
	}

	if err := SetJSON(c, "a", answer{IsTrue: true, Conf: 0.7}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := GetJSON[answer](c, "a")
	if !ok || !got.IsTrue || got.Conf != 0.7 {
		t.Errorf("unexpected value %+v %v", got, ok)
	}

	_ = c.Set("bad", []byte("{"), 0)
	if _, ok := GetJSON[answer](c, "bad"); ok {
		t.Error("expected undecodable entry to miss")
	}
}
