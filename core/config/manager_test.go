package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openaudit/fairbayes/core/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Dataset.ClassAttribute != "Salary" {
		t.Errorf("Dataset.ClassAttribute: got %s, want Salary", cfg.Dataset.ClassAttribute)
	}
	if cfg.Model.Smoothing != 1.0 {
		t.Errorf("Model.Smoothing: got %v, want 1.0", cfg.Model.Smoothing)
	}
	if cfg.Model.CacheSize != 1024 {
		t.Errorf("Model.CacheSize: got %d, want 1024", cfg.Model.CacheSize)
	}
	if cfg.Audit.SensitiveAttribute != "Gender" {
		t.Errorf("Audit.SensitiveAttribute: got %s, want Gender", cfg.Audit.SensitiveAttribute)
	}
	if cfg.Audit.Threshold != 0.5 {
		t.Errorf("Audit.Threshold: got %v, want 0.5", cfg.Audit.Threshold)
	}
	if len(cfg.Audit.EvidenceAttributes) != 4 {
		t.Errorf("Audit.EvidenceAttributes: got %v, want 4 attributes", cfg.Audit.EvidenceAttributes)
	}
}

func TestManagerGet(t *testing.T) {
	dirs := &storage.Dirs{
		Config: t.TempDir(),
		Data:   t.TempDir(),
	}
	m := NewManager(dirs)

	cfg := m.Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Dataset.ClassAttribute != "Salary" {
		t.Error("Default class attribute should be Salary")
	}
}

func TestManagerLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	dirs := &storage.Dirs{
		Config: tmpDir,
		Data:   t.TempDir(),
	}

	configContent := `
dataset:
  class_attribute: Income
model:
  smoothing: 0.5
audit:
  protected_group: F
  evidence_attributes: [Age, Zip]
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	m := NewManager(dirs)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Dataset.ClassAttribute != "Income" {
		t.Errorf("ClassAttribute: got %s, want Income", cfg.Dataset.ClassAttribute)
	}
	if cfg.Model.Smoothing != 0.5 {
		t.Errorf("Smoothing: got %v, want 0.5", cfg.Model.Smoothing)
	}
	if cfg.Audit.ProtectedGroup != "F" {
		t.Errorf("ProtectedGroup: got %s, want F", cfg.Audit.ProtectedGroup)
	}
	if got := cfg.Audit.EvidenceAttributes; len(got) != 2 || got[0] != "Age" || got[1] != "Zip" {
		t.Errorf("EvidenceAttributes: got %v, want [Age Zip]", got)
	}

	if cfg.Audit.ReferenceGroup != "Male" {
		t.Errorf("Untouched ReferenceGroup: got %s, want Male", cfg.Audit.ReferenceGroup)
	}
	if cfg.Audit.Threshold != 0.5 {
		t.Errorf("Untouched Threshold: got %v, want 0.5", cfg.Audit.Threshold)
	}
}

func TestManagerExplicitZeroSmoothing(t *testing.T) {
	tmpDir := t.TempDir()
	dirs := &storage.Dirs{
		Config: tmpDir,
		Data:   t.TempDir(),
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("model:\n  smoothing: 0\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	m := NewManager(dirs)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := m.Get().Model.Smoothing; got != 0 {
		t.Errorf("Explicit zero smoothing: got %v, want 0", got)
	}
}

func TestManagerEnvironmentOverride(t *testing.T) {
	dirs := &storage.Dirs{
		Config: t.TempDir(),
		Data:   t.TempDir(),
	}

	t.Setenv("FAIRBAYES_AUDIT_SENSITIVE", "Race")
	t.Setenv("FAIRBAYES_MODEL_SMOOTHING", "2.5")
	t.Setenv("FAIRBAYES_MODEL_CACHE_SIZE", "64")

	m := NewManager(dirs)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Audit.SensitiveAttribute != "Race" {
		t.Errorf("SensitiveAttribute: got %s, want Race", cfg.Audit.SensitiveAttribute)
	}
	if cfg.Model.Smoothing != 2.5 {
		t.Errorf("Smoothing: got %v, want 2.5", cfg.Model.Smoothing)
	}
	if cfg.Model.CacheSize != 64 {
		t.Errorf("CacheSize: got %d, want 64", cfg.Model.CacheSize)
	}
}

func TestManagerOnChange(t *testing.T) {
	dirs := &storage.Dirs{
		Config: t.TempDir(),
		Data:   t.TempDir(),
	}
	m := NewManager(dirs)

	called := false
	m.OnChange(func(cfg *Config) {
		called = true
	})

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !called {
		t.Error("OnChange callback should have been called")
	}
}

func TestManagerReload(t *testing.T) {
	tmpDir := t.TempDir()
	dirs := &storage.Dirs{
		Config: tmpDir,
		Data:   t.TempDir(),
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("model:\n  cache_size: 16"), 0644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	m := NewManager(dirs)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Get().Model.CacheSize != 16 {
		t.Errorf("Initial CacheSize: got %d, want 16", m.Get().Model.CacheSize)
	}

	if err := os.WriteFile(configPath, []byte("model:\n  cache_size: 32"), 0644); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := m.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if m.Get().Model.CacheSize != 32 {
		t.Errorf("Reloaded CacheSize: got %d, want 32", m.Get().Model.CacheSize)
	}
}

func TestWatchDebounceInterval(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"default", "500ms", 500 * time.Millisecond},
		{"custom", "2s", 2 * time.Second},
		{"unparseable falls back", "soon", 500 * time.Millisecond},
		{"negative falls back", "-1s", 500 * time.Millisecond},
		{"empty falls back", "", 500 * time.Millisecond},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := WatchConfig{Debounce: tc.value}
			if got := w.DebounceInterval(); got != tc.want {
				t.Errorf("DebounceInterval(%q) = %v, want %v", tc.value, got, tc.want)
			}
		})
	}
}
