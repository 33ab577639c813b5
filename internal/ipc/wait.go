package ipc

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const endpointPollInterval = 100 * time.Millisecond

// WaitForEndpoint blocks until the endpoint at path exists or ctx is done.
// The parent directory is watched for create events; where it cannot be
// watched (named pipes) the path is polled instead.
func WaitForEndpoint(ctx context.Context, path string) error {
	if endpointExists(path) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return pollEndpoint(ctx, path)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return pollEndpoint(ctx, path)
	}

	// the endpoint may have appeared before the watch was registered
	if endpointExists(path) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", path, ctx.Err())
		case event, ok := <-watcher.Events:
			if !ok {
				return pollEndpoint(ctx, path)
			}
			if event.Has(fsnotify.Create) && filepath.Clean(event.Name) == filepath.Clean(path) {
				return nil
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return pollEndpoint(ctx, path)
			}
		}
	}
}

func pollEndpoint(ctx context.Context, path string) error {
	ticker := time.NewTicker(endpointPollInterval)
	defer ticker.Stop()

	for {
		if endpointExists(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
}
