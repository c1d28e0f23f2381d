package ops

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
)

// Runtime holds the live configuration behind an atomic.Value so the
// control loop can re-read it every pass while a watcher swaps it in the
// background.
type Runtime struct {
	v atomic.Value
}

// NewRuntime creates a runtime holder seeded with the given configuration.
func NewRuntime(loaded Loaded) *Runtime {
	var r Runtime
	r.v.Store(loaded)
	return &r
}

// Load returns the current configuration.
func (r *Runtime) Load() Loaded {
	return r.v.Load().(Loaded)
}

// Update swaps the configuration.
func (r *Runtime) Update(loaded Loaded) {
	r.v.Store(loaded)
}

// Watch polls the config file's modification time and reloads it into the
// runtime when it changes. A failed reload keeps the previous
// configuration.
func Watch(ctx context.Context, path string, interval time.Duration, runtime *Runtime) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Warnf("config stat failed: %v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := Load(path)
			if err != nil {
				logs.Errorf("config reload failed: %v", err)
				continue
			}
			runtime.Update(loaded)
			lastMod = info.ModTime()
			logs.Infof("config reloaded: %s", path)
		}
	}
}
