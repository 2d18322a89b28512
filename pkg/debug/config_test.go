package debug

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.Debug {
		t.Fatal("Debug on by default")
	}
	if cfg.MaxNestedBreaks != 4 || cfg.MaxMirrorDepth != 10 || cfg.CommandQueueSize != 8 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.BreakOnCaught || cfg.BreakOnUncaught {
		t.Fatal("exception breaks armed by default")
	}
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("QSDBG_DEBUG", "true")
	t.Setenv("QSDBG_MAX_NESTED_BREAKS", "2")
	t.Setenv("QSDBG_LISTEN_ADDR", "localhost:19229")

	cfg := NewConfig()
	if !cfg.Debug || cfg.MaxNestedBreaks != 2 || cfg.ListenAddr != "localhost:19229" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestConfigOptionsOverrideEnvironment(t *testing.T) {
	t.Setenv("QSDBG_MAX_NESTED_BREAKS", "2")

	cfg := NewConfig(
		WithMaxNestedBreaks(7),
		WithBreakOnException(true, true),
		WithCommandQueueSize(32),
	)
	if cfg.MaxNestedBreaks != 7 || !cfg.BreakOnCaught || !cfg.BreakOnUncaught || cfg.CommandQueueSize != 32 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qsdbg.yaml")
	data := "debug: true\nmax_nested_breaks: 3\nlisten_addr: localhost:9000\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewConfig(WithConfigFile(path))
	if !cfg.Debug || cfg.MaxNestedBreaks != 3 || cfg.ListenAddr != "localhost:9000" {
		t.Fatalf("cfg = %+v", cfg)
	}

	// A missing file leaves the defaults alone.
	cfg = NewConfig(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	if cfg.Debug || cfg.MaxNestedBreaks != 4 {
		t.Fatalf("cfg after missing file = %+v", cfg)
	}
}
