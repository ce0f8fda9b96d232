package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCfg(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestDefaults(t *testing.T) {
	p := writeCfg(t, "c.yml", "env: dev\n")
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend != BackendMemory {
		t.Fatalf("default backend = %q", c.Backend)
	}
	if c.Redis.Addr != "127.0.0.1:6379" || c.Redis.Timeout != 5*time.Second {
		t.Fatalf("redis defaults = %+v", c.Redis)
	}
	if c.Prefs.Path == "" {
		t.Fatalf("prefs path default missing")
	}
}

func TestMissingFileFallsBackToDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend != BackendMemory {
		t.Fatalf("backend = %q", c.Backend)
	}
}

func TestLaterFilesOverrideEarlier(t *testing.T) {
	a := writeCfg(t, "a.yml", "backend: redis\nredis:\n  addr: \"10.0.0.1:6379\"\n")
	b := writeCfg(t, "b.yml", "redis:\n  addr: \"10.0.0.2:6379\"\n")
	c, err := Load(a + "," + b)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Backend != BackendRedis {
		t.Fatalf("backend = %q", c.Backend)
	}
	if c.Redis.Addr != "10.0.0.2:6379" {
		t.Fatalf("override lost: %q", c.Redis.Addr)
	}
}

func TestGatewayRequiresURL(t *testing.T) {
	p := writeCfg(t, "c.yml", "backend: gateway\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for missing gateway.url")
	}
}

func TestUnknownBackendRejected(t *testing.T) {
	p := writeCfg(t, "c.yml", "backend: mongodb\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestEmptyPathListRejected(t *testing.T) {
	if _, err := Load("  "); err == nil {
		t.Fatalf("expected error for empty path list")
	}
}
