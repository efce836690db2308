// Package config loads and validates the daemon configuration.
//
// Config files are YAML or JSON, decoded strictly: unknown fields are an
// error. All durations are Go duration strings (e.g. "500ms", "10s", "1m").
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskforge/internal/store"
	"taskforge/internal/worker"
	logx "taskforge/pkg/logx"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging,omitempty"`
	Store     StoreConfig     `json:"store,omitempty"`
	Worker    WorkerConfig    `json:"worker,omitempty"`
	Server    ServerConfig    `json:"server,omitempty"`
	Scheduler SchedulerConfig `json:"scheduler,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level,omitempty"`
	Console *bool  `json:"console,omitempty"` // nil means enabled
	File    struct {
		Enabled bool   `json:"enabled,omitempty"`
		Path    string `json:"path,omitempty"`
	} `json:"file,omitempty"`
}

type StoreConfig struct {
	Driver      string `json:"driver,omitempty"` // sqlite (default) | memory
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// WorkerConfig controls the polling worker loop.
//
// Defaults (when fields are omitted/zero):
//   - poll_interval: "3s"
//   - workers: 2
//   - queue_size: 64
//   - claim_batch: 32
//   - task_timeout: "0s" (disabled)
//   - stale_after: "1h"
type WorkerConfig struct {
	Enabled      *bool  `json:"enabled,omitempty"`
	PollInterval string `json:"poll_interval,omitempty"`
	Workers      int    `json:"workers,omitempty"`
	QueueSize    int    `json:"queue_size,omitempty"`
	ClaimBatch   int    `json:"claim_batch,omitempty"`
	TaskTimeout  string `json:"task_timeout,omitempty"`
	StaleAfter   string `json:"stale_after,omitempty"`
}

type ServerConfig struct {
	Enabled          bool   `json:"enabled,omitempty"`
	Addr             string `json:"addr,omitempty"`               // default "127.0.0.1:8437"
	SubmitRatePerSec int    `json:"submit_rate_per_sec,omitempty"` // default 20
}

type SchedulerConfig struct {
	Backend      string            `json:"backend,omitempty"` // schtasks | crontab; empty picks by platform
	Interpreters map[string]string `json:"interpreters,omitempty"`

	// SelfRegister makes the daemon register itself as a logon job on
	// startup, so it comes back after a reboot without an installer step.
	SelfRegister     bool   `json:"self_register,omitempty"`
	SelfRegisterName string `json:"self_register_name,omitempty"` // default "TaskforgeDaemon"
}

// Load reads and strictly decodes a config file. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}

	j, err := coerceToJSONBytes(path, data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(j))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// DataDir is where the default sqlite database lives.
func DataDir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "taskforge")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskforge")
}

// ---- component config builders ----

func (c Config) Logx() logx.Config {
	console := true
	if c.Logging.Console != nil {
		console = *c.Logging.Console
	}
	return logx.Config{
		Level:   c.Logging.Level,
		Console: console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

func (c Config) StoreConfig() (store.Config, error) {
	busy, err := ParseDurationOrDefault("store.busy_timeout", c.Store.BusyTimeout, 5*time.Second)
	if err != nil {
		return store.Config{}, err
	}
	path := c.Store.Path
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(DataDir(), "taskforge.db")
	}
	return store.Config{
		Driver:      c.Store.Driver,
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

func (c Config) WorkerEnabled() bool {
	if c.Worker.Enabled != nil {
		return *c.Worker.Enabled
	}
	return true
}

func (c Config) WorkerConfig() (worker.Config, error) {
	poll, err := ParseDurationOrDefault("worker.poll_interval", c.Worker.PollInterval, 3*time.Second)
	if err != nil {
		return worker.Config{}, err
	}
	timeout, err := ParseDurationField("worker.task_timeout", c.Worker.TaskTimeout)
	if err != nil {
		return worker.Config{}, err
	}
	stale, err := ParseDurationOrDefault("worker.stale_after", c.Worker.StaleAfter, time.Hour)
	if err != nil {
		return worker.Config{}, err
	}
	return worker.Config{
		PollInterval: poll,
		Workers:      c.Worker.Workers,
		QueueSize:    c.Worker.QueueSize,
		ClaimBatch:   c.Worker.ClaimBatch,
		TaskTimeout:  timeout,
		StaleAfter:   stale,
	}, nil
}

func (c Config) ServerAddr() string {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return "127.0.0.1:8437"
	}
	return c.Server.Addr
}

func (c Config) SubmitRate() int {
	if c.Server.SubmitRatePerSec <= 0 {
		return 20
	}
	return c.Server.SubmitRatePerSec
}

func (c Config) SelfRegisterName() string {
	if strings.TrimSpace(c.Scheduler.SelfRegisterName) == "" {
		return "TaskforgeDaemon"
	}
	return c.Scheduler.SelfRegisterName
}

func (c Config) Interpreters() map[string]string {
	if len(c.Scheduler.Interpreters) == 0 {
		return map[string]string{".py": "python3"}
	}
	return c.Scheduler.Interpreters
}
