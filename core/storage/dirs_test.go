package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

func TestResolveDirs(t *testing.T) {
	dirs, err := ResolveDirs()
	if err != nil {
		t.Fatalf("ResolveDirs failed: %v", err)
	}

	if dirs.Config == "" {
		t.Error("Config dir should not be empty")
	}
	if dirs.Data == "" {
		t.Error("Data dir should not be empty")
	}

	if !strings.Contains(dirs.Config, "fairbayes") {
		t.Errorf("Config dir should contain 'fairbayes': %s", dirs.Config)
	}
}

func TestResolveDirsXDGOverride(t *testing.T) {
	resetGlobalDirs()

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	dirs, err := ResolveDirs()
	if err != nil {
		t.Fatalf("ResolveDirs failed: %v", err)
	}

	expected := filepath.Join(tmpDir, "fairbayes")
	if dirs.Config != expected {
		t.Errorf("XDG override failed: got %s, want %s", dirs.Config, expected)
	}
}

func TestResolveProjectDirs(t *testing.T) {
	projectRoot := "/test/project"
	dirs := ResolveProjectDirs(projectRoot)

	if dirs.Root != filepath.Join(projectRoot, ".fairbayes") {
		t.Errorf("Root: got %s, want %s", dirs.Root, filepath.Join(projectRoot, ".fairbayes"))
	}
	if dirs.Config != filepath.Join(projectRoot, ".fairbayes", "config.yaml") {
		t.Errorf("Config: got %s, want %s", dirs.Config, filepath.Join(projectRoot, ".fairbayes", "config.yaml"))
	}
	if dirs.Local != filepath.Join(projectRoot, ".fairbayes", "local") {
		t.Errorf("Local: got %s, want %s", dirs.Local, filepath.Join(projectRoot, ".fairbayes", "local"))
	}
}

func TestEnsureDir(t *testing.T) {
	tmpDir := t.TempDir()
	testDir := filepath.Join(tmpDir, "test", "nested", "dir")

	err := EnsureDir(testDir, 0755)
	if err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}

	info, err := os.Stat(testDir)
	if err != nil {
		t.Fatalf("Dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("Created path is not a directory")
	}

	err = EnsureDir(testDir, 0755)
	if err != nil {
		t.Error("EnsureDir should be idempotent")
	}
}

func TestEnsureSensitiveDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Permission test not applicable on Windows")
	}

	tmpDir := t.TempDir()
	testDir := filepath.Join(tmpDir, "sensitive")

	err := EnsureSensitiveDir(testDir)
	if err != nil {
		t.Fatalf("EnsureSensitiveDir failed: %v", err)
	}

	info, err := os.Stat(testDir)
	if err != nil {
		t.Fatalf("Dir not created: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0700 {
		t.Errorf("Permissions: got %o, want 0700", perm)
	}
}

func TestDirsHelperMethods(t *testing.T) {
	dirs := &Dirs{
		Config: "/config",
		Data:   "/data",
	}

	if got := dirs.ConfigDir("sub"); got != "/config/sub" {
		t.Errorf("ConfigDir: got %s, want /config/sub", got)
	}
	if got := dirs.DataDir("a", "b"); got != "/data/a/b" {
		t.Errorf("DataDir: got %s, want /data/a/b", got)
	}
	if got := dirs.ConfigDir(); got != "/config" {
		t.Errorf("ConfigDir: got %s, want /config", got)
	}
	if got := dirs.RegistryDB(); got != "/data/registry.db" {
		t.Errorf("RegistryDB: got %s, want /data/registry.db", got)
	}
}

func TestEnsureAll(t *testing.T) {
	tmpDir := t.TempDir()
	dirs := &Dirs{
		Config: filepath.Join(tmpDir, "config"),
		Data:   filepath.Join(tmpDir, "data"),
	}

	err := dirs.EnsureAll()
	if err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	for _, dir := range []string{dirs.Config, dirs.Data} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("Dir should exist: %s", dir)
		}
	}
}

func resetGlobalDirs() {
	globalDirs = nil
	globalDirsOnce = sync.Once{}
	globalDirsErr = nil
}
