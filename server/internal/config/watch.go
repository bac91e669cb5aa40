package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses the burst of events one editor save produces.
var watchDebounce = 250 * time.Millisecond

// Reload describes one accepted change to the config file.
type Reload struct {
	Config *Config
	// Changed lists the top-level sections that differ from the previous config.
	Changed []string
	// Restart is the subset of Changed that only takes effect at startup.
	Restart []string
}

// section is a top-level config block. Only hot sections are applied by a
// running server; the rest are read once when the model and listeners start.
type section struct {
	name string
	hot  bool
	get  func(*Config) any
}

var sections = []section{
	{"server", false, func(c *Config) any { return c.Server }},
	{"dataset", false, func(c *Config) any { return c.Dataset }},
	{"model", false, func(c *Config) any { return c.Model }},
	{"cache", false, func(c *Config) any { return c.Cache }},
	{"storage", false, func(c *Config) any { return c.Storage }},
	{"alerts", false, func(c *Config) any { return c.Alerts }},
	{"log.level", true, func(c *Config) any { return c.Log.Level }},
	{"log.format", false, func(c *Config) any { return c.Log.Format }},
	{"tracing", false, func(c *Config) any { return c.Tracing }},
}

// diff compares two configs section by section.
func diff(prev, next *Config) Reload {
	r := Reload{Config: next}
	for _, s := range sections {
		if reflect.DeepEqual(s.get(prev), s.get(next)) {
			continue
		}
		r.Changed = append(r.Changed, s.name)
		if !s.hot {
			r.Restart = append(r.Restart, s.name)
		}
	}
	return r
}

// Watch reloads path whenever it changes and calls onChange with the
// sections that differ from current. Saves that leave every section
// unchanged, and files that fail to load, are logged and skipped. It runs
// until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors
// which save by renaming over the original keep being observed.
func Watch(ctx context.Context, path string, current *Config, onChange func(Reload)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	if current == nil {
		if current, err = Load(target); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	slog.Info("config: watching for changes", "path", target)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			settle = time.After(watchDebounce)

		case <-settle:
			settle = nil
			next, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", target, "err", err)
				continue
			}
			r := diff(current, next)
			if len(r.Changed) == 0 {
				slog.Debug("config: file saved without changes", "path", target)
				continue
			}
			current = next
			slog.Info("config: reloaded",
				"path", target,
				"changed", r.Changed,
				"restart_required", r.Restart,
			)
			onChange(r)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
