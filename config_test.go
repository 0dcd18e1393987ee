package tandem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// ==============================
// Config sources
// ==============================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.DefaultTTLSeconds != 3600 {
		t.Errorf("DefaultTTLSeconds = %d", cfg.DefaultTTLSeconds)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d", cfg.FailureThreshold)
	}
	if cfg.ProbeIntervalSeconds != 5 || cfg.ProbeTimeoutSeconds != 2 {
		t.Errorf("probe settings = %d/%d", cfg.ProbeIntervalSeconds, cfg.ProbeTimeoutSeconds)
	}
	if cfg.LocalCapacity != 1000 {
		t.Errorf("LocalCapacity = %d", cfg.LocalCapacity)
	}
	if cfg.Disabled {
		t.Error("Disabled should default to false")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://example:6380/2")
	t.Setenv("CACHE_KEY_PREFIX", "svc")
	t.Setenv("CACHE_DEFAULT_TTL_SECONDS", "60")
	t.Setenv("CACHE_FAILURE_THRESHOLD", "7")
	t.Setenv("CACHE_PROBE_INTERVAL_SECONDS", "9")
	t.Setenv("CACHE_PROBE_TIMEOUT_SECONDS", "4")
	t.Setenv("CACHE_LOCAL_CAPACITY", "50")
	t.Setenv("CACHE_DISABLED", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.RedisURL != "redis://example:6380/2" || cfg.KeyPrefix != "svc" {
		t.Errorf("strings = %q / %q", cfg.RedisURL, cfg.KeyPrefix)
	}
	if cfg.DefaultTTLSeconds != 60 || cfg.FailureThreshold != 7 {
		t.Errorf("ints = %d / %d", cfg.DefaultTTLSeconds, cfg.FailureThreshold)
	}
	if cfg.ProbeIntervalSeconds != 9 || cfg.ProbeTimeoutSeconds != 4 || cfg.LocalCapacity != 50 {
		t.Errorf("ints = %d / %d / %d", cfg.ProbeIntervalSeconds, cfg.ProbeTimeoutSeconds, cfg.LocalCapacity)
	}
	if !cfg.Disabled {
		t.Error("Disabled not applied")
	}
}

func TestFromEnvMalformedValuesKeepDefaults(t *testing.T) {
	t.Setenv("CACHE_DEFAULT_TTL_SECONDS", "soon")
	t.Setenv("CACHE_DISABLED", "maybe")
	t.Setenv("CACHE_FAILURE_THRESHOLD", "7")

	cfg, err := FromEnv()
	if err == nil {
		t.Fatal("expected a joined error for malformed values")
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if cfg.DefaultTTLSeconds != 3600 {
		t.Errorf("DefaultTTLSeconds = %d, want default kept", cfg.DefaultTTLSeconds)
	}
	if cfg.Disabled {
		t.Error("Disabled should keep its default on a bad value")
	}
	if cfg.FailureThreshold != 7 {
		t.Errorf("FailureThreshold = %d, valid vars must still apply", cfg.FailureThreshold)
	}
}

func TestLoadFileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	body := "redis_url: redis://cache.internal:6379/1\nkey_prefix: orders\ndefault_ttl_seconds: 120\ndisabled: true\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.RedisURL != "redis://cache.internal:6379/1" || cfg.KeyPrefix != "orders" {
		t.Errorf("strings = %q / %q", cfg.RedisURL, cfg.KeyPrefix)
	}
	if cfg.DefaultTTLSeconds != 120 || !cfg.Disabled {
		t.Errorf("ttl=%d disabled=%v", cfg.DefaultTTLSeconds, cfg.Disabled)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, unset fields must keep defaults", cfg.FailureThreshold)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	body := `{"redis_url": "redis://cache.internal:6379/2", "local_capacity": 25}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.RedisURL != "redis://cache.internal:6379/2" || cfg.LocalCapacity != 25 {
		t.Errorf("got %q / %d", cfg.RedisURL, cfg.LocalCapacity)
	}
	if cfg.ProbeIntervalSeconds != 5 {
		t.Errorf("ProbeIntervalSeconds = %d, unset fields must keep defaults", cfg.ProbeIntervalSeconds)
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.toml")
	if err := os.WriteFile(path, []byte("redis_url = \"x\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want untouched defaults", cfg)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

// ==============================
// Assembly
// ==============================

func TestFromConfigBadRedisURLDegradesToLocalOnly(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.RedisURL = "http://not-redis"

	cc, err := FromConfig(cfg, Options{})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if cc == nil {
		t.Fatal("cache must still be usable alongside the error")
	}
	t.Cleanup(func() { _ = cc.Close(ctx) })

	if cc.State() != StateUnavailable {
		t.Fatalf("state = %s, want unavailable", cc.State())
	}
	if err := cc.Set(ctx, "k", "v", NoTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got string
	if hit, err := cc.Get(ctx, "k", &got); err != nil || !hit || got != "v" {
		t.Fatalf("Get = (%v, %v, %q)", hit, err, got)
	}
}

func TestFromConfigEmptyRedisURLIsLocalOnly(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.RedisURL = ""

	cc, err := FromConfig(cfg, Options{})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(ctx) })

	if err := cc.Set(ctx, "k", 1, NoTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}
	st := cc.Stats(ctx)
	if !st.Enabled || st.State != StateUnavailable {
		t.Fatalf("stats = %+v", st)
	}
	if st.LocalEntries != 1 || st.RemoteEntries != -1 {
		t.Fatalf("entries = %d/%d, want 1/-1", st.LocalEntries, st.RemoteEntries)
	}
}

func TestFromConfigClampsNegativeValues(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.RedisURL = ""
	cfg.DefaultTTLSeconds = -5
	cfg.ProbeTimeoutSeconds = -1

	cc, err := FromConfig(cfg, Options{})
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigError", err)
	}
	if cc == nil {
		t.Fatal("cache must still come up")
	}
	t.Cleanup(func() { _ = cc.Close(ctx) })

	if err := cc.Set(ctx, "k", "v", UseDefaultTTL); err != nil {
		t.Fatalf("Set with clamped default TTL: %v", err)
	}
}

func TestFromConfigBaseOptionsWin(t *testing.T) {
	ctx := context.Background()
	local := newFakeStore()
	cfg := DefaultConfig()
	cfg.RedisURL = ""
	cfg.KeyPrefix = "cfg"
	cfg.DefaultTTLSeconds = 999

	cc, err := FromConfig(cfg, Options{
		Local:      local,
		KeyPrefix:  "base",
		DefaultTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(ctx) })

	if err := cc.Set(ctx, "k", "v", UseDefaultTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !local.has("base:k") {
		t.Fatal("base KeyPrefix must win over the config's")
	}
	local.mu.Lock()
	ttl := local.lastTTL
	local.mu.Unlock()
	if ttl != time.Minute {
		t.Fatalf("ttl = %v, base DefaultTTL must win", ttl)
	}
}

func TestFromConfigDisabledSkipsRedis(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig() // RedisURL points somewhere; Disabled must not dial it
	cfg.Disabled = true

	cc, err := FromConfig(cfg, Options{})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(ctx) })

	if cc.Enabled() {
		t.Fatal("cache should report disabled")
	}
	if err := cc.Set(ctx, "k", "v", NoTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got string
	if hit, err := cc.Get(ctx, "k", &got); err != nil || hit {
		t.Fatalf("disabled Get = (%v, %v)", hit, err)
	}
}

func TestFromConfigConnectsToRedis(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.KeyPrefix = "app"
	cfg.ProbeIntervalSeconds = 3600

	cc, err := FromConfig(cfg, Options{})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(ctx) })

	if cc.State() != StateHealthy {
		t.Fatalf("state = %s, want healthy after the startup probe", cc.State())
	}
	if err := cc.Set(ctx, "u", user{ID: "1", Name: "Ada"}, NoTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, err := mr.Get("app:u")
	if err != nil {
		t.Fatalf("value missing from redis: %v", err)
	}
	if raw != `{"id":"1","name":"Ada"}` {
		t.Fatalf("stored %q", raw)
	}

	var got user
	if hit, err := cc.Get(ctx, "u", &got); err != nil || !hit || got.Name != "Ada" {
		t.Fatalf("Get = (%v, %v, %+v)", hit, err, got)
	}
	st := cc.Stats(ctx)
	if st.RemoteEntries != 1 || st.LocalEntries != 1 {
		t.Fatalf("entries = %d/%d, want 1/1", st.RemoteEntries, st.LocalEntries)
	}
}

// ==============================
// Default cache helpers
// ==============================

func TestPackageHelpersUseTheDefaultCache(t *testing.T) {
	ctx := context.Background()
	local := newFakeStore()
	cc, err := New(Options{Local: local})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prev := SetDefault(cc)
	t.Cleanup(func() {
		SetDefault(prev)
		_ = cc.Close(ctx)
	})

	if err := SetCached(ctx, "u:1", user{ID: "1", Name: "Ada"}, NoTTL); err != nil {
		t.Fatalf("SetCached: %v", err)
	}
	var got user
	if hit, err := GetCached(ctx, "u:1", &got); err != nil || !hit || got.ID != "1" {
		t.Fatalf("GetCached = (%v, %v, %+v)", hit, err, got)
	}
	if st := CachedStats(ctx); !st.Enabled || st.LocalEntries != 1 {
		t.Fatalf("CachedStats = %+v", st)
	}
	if err := DeleteCached(ctx, "u:1"); err != nil {
		t.Fatalf("DeleteCached: %v", err)
	}
	if hit, _ := GetCached(ctx, "u:1", &got); hit {
		t.Fatal("entry survived DeleteCached")
	}

	_ = SetCached(ctx, "u:2", 1, NoTTL)
	_ = SetCached(ctx, "o:2", 2, NoTTL)
	if n, err := ClearCachedPattern(ctx, "u:*"); err != nil || n != 1 {
		t.Fatalf("ClearCachedPattern = (%d, %v), want 1 removed", n, err)
	}
}
