// Package config loads redwire's runtime configuration: built-in defaults,
// then ${XDG_CONFIG_HOME:-~/.config}/redwire/config.yaml, then environment
// variable overrides, with fsnotify-based hot reload of the YAML layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/redwire/redwire/pkg/defaults"
)

// Config is the gateway's full runtime configuration.
type Config struct {
	// DatabaseURL is the Postgres connection string. The serve and migrate
	// commands refuse to start when it is empty; there is no mode that runs
	// the gateway without a Store.
	DatabaseURL string `yaml:"database_url"`

	// HTTPAddr is the listen address for the streamable-HTTP transport.
	// Empty means stdio-only.
	HTTPAddr string `yaml:"http_addr"`

	// DataDir is the root the Cookie Profile Cache resolves cookie_file
	// paths against; profile files outside it are rejected.
	DataDir string `yaml:"data_dir"`

	// PromptsDir overrides the user prompt-guide directory
	// (${XDG_CONFIG_HOME}/redwire/prompts/ by default).
	PromptsDir string `yaml:"prompts_dir"`

	// BuiltinPromptsDir is the fallback directory for built-in guides.
	BuiltinPromptsDir string `yaml:"builtin_prompts_dir"`

	// SensitiveHeaders is the case-insensitive header-name redaction set
	// applied to both stored request and response headers.
	SensitiveHeaders []string `yaml:"sensitive_headers"`

	// BodyTruncateLimit bounds stored request/response body size.
	BodyTruncateLimit int `yaml:"body_truncate_limit"`

	// EmbeddingDim is the fixed vector dimension D.
	EmbeddingDim int `yaml:"embedding_dim"`
}

// Default returns the built-in configuration baseline.
func Default() *Config {
	return &Config{
		DataDir:           defaultDataDir(),
		PromptsDir:        filepath.Join(xdgConfigHome(), defaults.AppName, "prompts"),
		BuiltinPromptsDir: "./prompts",
		SensitiveHeaders:  []string{"Authorization", "Proxy-Authorization"},
		BodyTruncateLimit: defaults.BodyTruncateLimit,
		EmbeddingDim:      384,
	}
}

// configFilePath returns ${XDG_CONFIG_HOME:-~/.config}/redwire/config.yaml.
func configFilePath() string {
	return filepath.Join(xdgConfigHome(), defaults.AppName, "config.yaml")
}

func xdgConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config"
	}
	return filepath.Join(home, ".config")
}

func xdgDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share"
	}
	return filepath.Join(home, ".local", "share")
}

func defaultDataDir() string {
	return filepath.Join(xdgDataHome(), defaults.AppName)
}

// Load builds the effective configuration: defaults, then config.yaml if
// present, then environment variable overrides.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); fileExists(path) {
		if err := mergeYAMLFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDWIRE_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("REDWIRE_PROMPTS_DIR"); v != "" {
		cfg.PromptsDir = v
	}
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		cfg.DataDir = filepath.Join(v, defaults.AppName)
	}
}

// Watcher watches config.yaml for changes and invokes onChange with the
// freshly reloaded Config. It watches a single file; a burst of events is
// coalesced by a 200ms debounce timer before the reload runs.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)
	done     chan struct{}
}

// NewWatcher creates a Watcher for the default config file location.
// If the file does not exist yet, Start still succeeds; the watch begins
// on its parent directory so a later file creation is picked up.
func NewWatcher(onChange func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	path := configFilePath()
	watchTarget := path
	if !fileExists(path) {
		watchTarget = filepath.Dir(path)
		if err := os.MkdirAll(watchTarget, 0o755); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("creating config dir: %w", err)
		}
	}
	if err := w.Add(watchTarget); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", watchTarget, err)
	}
	return &Watcher{watcher: w, path: path, onChange: onChange, done: make(chan struct{})}, nil
}

// Start runs the watch loop until Stop is called. Debounces bursts of
// filesystem events (editors often write+rename) into a single reload.
func (w *Watcher) Start() {
	go func() {
		var pending *time.Timer
		for {
			select {
			case <-w.done:
				if pending != nil {
					pending.Stop()
				}
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if ev.Name != w.path && filepath.Base(ev.Name) != filepath.Base(w.path) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(200*time.Millisecond, w.reload)
			case <-w.watcher.Errors:
				// best-effort: a watch error is not fatal to the gateway.
			}
		}
	}()
}

func (w *Watcher) reload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	cfg, err := Load()
	if err != nil {
		return
	}
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// Stop ends the watch loop and releases the underlying inotify handle.
func (w *Watcher) Stop() {
	close(w.done)
	_ = w.watcher.Close()
}
