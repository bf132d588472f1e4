// Package config holds process-wide configuration for cogniwardend: Dolt connection
// settings, vector index settings, and the two live-reloadable values spec.md §9 calls
// out as global process state — the active branch and the active namespace.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the resolved process configuration, bound from flags, environment
// variables (prefixed COGNIWARDEN_), and an optional on-disk TOML file.
type Config struct {
	// CurrentBranch and CurrentNamespace are process-wide session state (spec.md §9):
	// every tool call that doesn't name an explicit namespace falls back to
	// CurrentNamespace, and branch-scoped storage operations default to CurrentBranch.
	// Both are live-reloadable from the on-disk config file.
	CurrentBranch    string `mapstructure:"current_branch"`
	CurrentNamespace string `mapstructure:"current_namespace"`

	DoltPath     string `mapstructure:"dolt_path"`
	DoltDatabase string `mapstructure:"dolt_database"`
	DoltRemote   string `mapstructure:"dolt_remote"`

	ServerMode     bool   `mapstructure:"server_mode"`
	ServerHost     string `mapstructure:"server_host"`
	ServerPort     int    `mapstructure:"server_port"`

	VectorIndexEnabled bool `mapstructure:"vector_index_enabled"`
	EmbeddingDimension int  `mapstructure:"embedding_dimension"`

	SocketPath string `mapstructure:"socket_path"`
	TCPAddr    string `mapstructure:"tcp_addr"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`

	AutoCommitInterval time.Duration `mapstructure:"auto_commit_interval"`
}

// Default returns a Config with the system's baseline defaults applied.
func Default() *Config {
	return &Config{
		CurrentNamespace:   "legacy",
		DoltDatabase:       "cogniwarden",
		DoltRemote:         "origin",
		ServerHost:         "127.0.0.1",
		ServerPort:         3307,
		VectorIndexEnabled: true,
		EmbeddingDimension: 384,
		SocketPath:         "cogniwardend.sock",
		AutoCommitInterval: 30 * time.Second,
	}
}

// Watcher owns a live-reloading Config backed by viper and fsnotify.
// Reads of CurrentBranch/CurrentNamespace are the only values expected to change
// after startup; everything else is fixed for the process lifetime.
type Watcher struct {
	mu  sync.RWMutex
	v   *viper.Viper
	cfg Config
}

// NewWatcher builds process configuration from flags, environment, and an optional
// TOML config file at path (ignored if path is empty or the file doesn't exist).
// If path names a real file, changes to it are watched and CurrentBranch/
// CurrentNamespace are hot-reloaded.
func NewWatcher(path string) (*Watcher, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("current_branch", def.CurrentBranch)
	v.SetDefault("current_namespace", def.CurrentNamespace)
	v.SetDefault("dolt_path", def.DoltPath)
	v.SetDefault("dolt_database", def.DoltDatabase)
	v.SetDefault("dolt_remote", def.DoltRemote)
	v.SetDefault("server_mode", def.ServerMode)
	v.SetDefault("server_host", def.ServerHost)
	v.SetDefault("server_port", def.ServerPort)
	v.SetDefault("vector_index_enabled", def.VectorIndexEnabled)
	v.SetDefault("embedding_dimension", def.EmbeddingDimension)
	v.SetDefault("socket_path", def.SocketPath)
	v.SetDefault("tcp_addr", def.TCPAddr)
	v.SetDefault("tls_enabled", def.TLSEnabled)
	v.SetDefault("auto_commit_interval", def.AutoCommitInterval)

	v.SetEnvPrefix("cogniwarden")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	w := &Watcher{v: v}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			v.OnConfigChange(func(fsnotify.Event) { w.reload() })
			v.WatchConfig()
		}
	}

	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watcher) reload() error {
	var cfg Config
	if err := w.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current configuration.
func (w *Watcher) Snapshot() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// CurrentBranch returns the live current-branch value.
func (w *Watcher) CurrentBranch() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg.CurrentBranch
}

// CurrentNamespace returns the live current-namespace value.
func (w *Watcher) CurrentNamespace() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg.CurrentNamespace
}

// SetCurrentBranch overrides the live current-branch value for the rest of
// the process lifetime. The override survives a config-file reload: it is
// pushed into viper itself, not just the cached struct, so reload() picks it
// back up rather than reverting to the file's value.
func (w *Watcher) SetCurrentBranch(branch string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.v.Set("current_branch", branch)
	w.cfg.CurrentBranch = branch
}

// SetCurrentNamespace overrides the live current-namespace value, with the
// same reload-survives-override behavior as SetCurrentBranch.
func (w *Watcher) SetCurrentNamespace(namespace string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.v.Set("current_namespace", namespace)
	w.cfg.CurrentNamespace = namespace
}

// global is the process-wide Watcher set by cmd/cogniwardend at startup. It is nil
// in tests and tools that build a Config directly rather than through a config file.
var global *Watcher

// SetGlobal installs w as the process-wide config accessed by GetString.
func SetGlobal(w *Watcher) { global = w }

// GetString reads an arbitrary key from the process-wide viper instance, for
// callers (like the RPC client) that need a config value by name rather than
// through a typed Config field. Returns "" if no global config is installed.
func GetString(key string) string {
	if global == nil {
		return ""
	}
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.v.GetString(key)
}
