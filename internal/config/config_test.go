package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeFile(t, "config.yml", "env: test\n")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTP.Addr != ":7080" {
		t.Fatalf("expected default addr, got %q", c.HTTP.Addr)
	}
	if c.Version != "v1" || c.StaticName() != "static-v1" || c.RuntimeName() != "runtime-v1" {
		t.Fatalf("unexpected version/partition names: %q %q %q", c.Version, c.StaticName(), c.RuntimeName())
	}
	if c.Cache.FallbackKey != "/" {
		t.Fatalf("expected default fallback key, got %q", c.Cache.FallbackKey)
	}
	if len(c.Sync.Queues) != 2 || c.Sync.Queues[0] != "save-test-data" || c.Sync.Queues[1] != "submit-quiz" {
		t.Fatalf("unexpected default queues: %v", c.Sync.Queues)
	}
	if c.Breaker.Threshold != 5 || c.Breaker.Window != 10*time.Second {
		t.Fatalf("unexpected breaker defaults: %+v", c.Breaker)
	}
	if c.Notify.DismissAction != "dismiss" || c.Notify.EntryPath != "/" {
		t.Fatalf("unexpected notify defaults: %+v", c.Notify)
	}
}

func TestLoadMergesMultipleFiles(t *testing.T) {
	common := writeFile(t, "common.yml", "version: v7\nhttp:\n  addr: \":9000\"\n")
	local := writeFile(t, "local.yml", "http:\n  addr: \":9100\"\ninstall:\n  essential: [\"/\", \"/index.html\"]\n")

	c, err := Load(common + "," + local)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.HTTP.Addr != ":9100" {
		t.Fatalf("expected later file to win, got %q", c.HTTP.Addr)
	}
	if c.Version != "v7" || c.StaticName() != "static-v7" {
		t.Fatalf("expected earlier value preserved, got %q", c.Version)
	}
	if len(c.Install.Essential) != 2 {
		t.Fatalf("unexpected essential list: %v", c.Install.Essential)
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load("  "); err == nil {
		t.Fatal("expected error for empty path list")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
