package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the file must stay quiet before it is reloaded
var reloadDebounce = 250 * time.Millisecond

// Watch reloads the config file at path after every change and hands the
// result to onChange. The parent directory is watched rather than the file,
// so saves that rename a new file into place and symlink swaps (as done for
// mounted ConfigMaps) keep being seen. Bursts of events are coalesced. A
// reload that fails to parse or validate is logged and the previous config
// stays in effect. Runs until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	file, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	dir := filepath.Dir(file)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	slog.Info("Watching config file for changes", "path", file)

	target := resolveLink(file)
	pending := time.NewTimer(reloadDebounce)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if filepath.Clean(event.Name) != file && resolveLink(file) == target {
				continue
			}
			pending.Reset(reloadDebounce)

		case <-pending.C:
			target = resolveLink(file)

			cfg, err := Load(file)
			if err != nil {
				slog.Error("Config reload failed, keeping previous config", "path", file, "error", err)
				continue
			}

			slog.Info("Config reloaded", "path", file, "sites", len(cfg.Sites.List))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Config watcher error", "error", err)
		}
	}
}

// resolveLink follows symlinks so a retargeted link counts as a change. A
// missing file resolves to itself.
func resolveLink(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
