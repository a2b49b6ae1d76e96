package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch watches the configuration file and emits a freshly loaded and
// validated Config every time the file is written or re-created. Invalid
// edits are logged and skipped so that a half-saved file never reaches
// the control loop. The returned channel is closed when ctx is done.
//
// The parent directory is watched rather than the file itself, since most
// editors replace the file on save.
func Watch(ctx context.Context, filename string) (<-chan *Config, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(filename)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path %s: %w", filename, err)
	}

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory for %s: %w", filename, err)
	}

	out := make(chan *Config)

	go func() {
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := Load(abs)
				if err != nil {
					log.Printf("Ignoring config change: %v", err)
					continue
				}
				if err := cfg.Validate(); err != nil {
					log.Printf("Ignoring config change: %v", err)
					continue
				}

				select {
				case out <- cfg:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Config watcher error: %v", err)
			}
		}
	}()

	return out, nil
}
