package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/openaudit/fairbayes/core/storage"
	"gopkg.in/yaml.v3"
)

type Manager struct {
	configPtr unsafe.Pointer
	dirs      *storage.Dirs
	watchers  []func(*Config)
	watcherMu sync.RWMutex
}

type Config struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Model   ModelConfig   `yaml:"model"`
	Audit   AuditConfig   `yaml:"audit"`
	Watch   WatchConfig   `yaml:"watch"`
}

type DatasetConfig struct {
	ClassAttribute string   `yaml:"class_attribute"`
	IncludeColumns []string `yaml:"include_columns"`
	ExcludeColumns []string `yaml:"exclude_columns"`
}

type ModelConfig struct {
	Smoothing float64 `yaml:"smoothing"`
	CacheSize int     `yaml:"cache_size"`
}

type AuditConfig struct {
	EvidenceAttributes []string `yaml:"evidence_attributes"`
	SensitiveAttribute string   `yaml:"sensitive_attribute"`
	ProtectedGroup     string   `yaml:"protected_group"`
	ReferenceGroup     string   `yaml:"reference_group"`
	PositiveOutcome    string   `yaml:"positive_outcome"`
	Threshold          float64  `yaml:"threshold"`
	Workers            int      `yaml:"workers"`
}

type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

func NewManager(dirs *storage.Dirs) *Manager {
	m := &Manager{dirs: dirs}
	cfg := DefaultConfig()
	atomic.StorePointer(&m.configPtr, unsafe.Pointer(cfg))
	return m
}

func DefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			ClassAttribute: "Salary",
		},
		Model: ModelConfig{
			Smoothing: 1.0,
			CacheSize: 1024,
		},
		Audit: AuditConfig{
			EvidenceAttributes: []string{"Work", "Education", "Occupation", "Relationship"},
			SensitiveAttribute: "Gender",
			ProtectedGroup:     "Female",
			ReferenceGroup:     "Male",
			PositiveOutcome:    ">=50K",
			Threshold:          0.5,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

func (m *Manager) Get() *Config {
	return (*Config)(atomic.LoadPointer(&m.configPtr))
}

func (m *Manager) Load() error {
	cfg := DefaultConfig()

	if err := m.loadProjectConfig(cfg); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := m.loadUserConfig(cfg); err != nil {
		return fmt.Errorf("user config: %w", err)
	}

	if err := m.loadLocalConfig(cfg); err != nil {
		return fmt.Errorf("local config: %w", err)
	}

	m.applyEnvironment(cfg)

	atomic.StorePointer(&m.configPtr, unsafe.Pointer(cfg))
	m.notifyWatchers(cfg)

	return nil
}

func (m *Manager) loadProjectConfig(cfg *Config) error {
	projectDirs := storage.ResolveProjectDirs(".")
	return m.loadYAMLFile(projectDirs.Config, cfg)
}

func (m *Manager) loadUserConfig(cfg *Config) error {
	userConfigPath := m.dirs.ConfigDir("config.yaml")
	return m.loadYAMLFile(userConfigPath, cfg)
}

func (m *Manager) loadLocalConfig(cfg *Config) error {
	projectDirs := storage.ResolveProjectDirs(".")
	localPath := filepath.Join(projectDirs.Local, "config.yaml")
	return m.loadYAMLFile(localPath, cfg)
}

func (m *Manager) loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func (m *Manager) applyEnvironment(cfg *Config) {
	if v := os.Getenv("FAIRBAYES_CLASS_ATTRIBUTE"); v != "" {
		cfg.Dataset.ClassAttribute = v
	}
	if v := os.Getenv("FAIRBAYES_MODEL_SMOOTHING"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Model.Smoothing = f
		}
	}
	if v := os.Getenv("FAIRBAYES_MODEL_CACHE_SIZE"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Model.CacheSize = n
		}
	}
	if v := os.Getenv("FAIRBAYES_AUDIT_SENSITIVE"); v != "" {
		cfg.Audit.SensitiveAttribute = v
	}
	if v := os.Getenv("FAIRBAYES_AUDIT_THRESHOLD"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Audit.Threshold = f
		}
	}
	if v := os.Getenv("FAIRBAYES_AUDIT_WORKERS"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Audit.Workers = n
		}
	}
	if v := os.Getenv("FAIRBAYES_WATCH_DEBOUNCE"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			cfg.Watch.Debounce = v
		}
	}
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

func (w WatchConfig) DebounceInterval() time.Duration {
	if d, err := time.ParseDuration(w.Debounce); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err
}
