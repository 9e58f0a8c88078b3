package registry

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/zainal/disaster-siren/internal/logger"
)

// WatchAssets re-validates the Custom asset whenever a file in the audio
// directory changes out-of-band (scp, manual edits). It only logs; a broken
// asset is rejected at activation time anyway. Blocks until ctx is done.
func (r *Registry) WatchAssets(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create asset watcher: %w", err)
	}

	defer func() {
		_ = watcher.Close()
	}()

	dir := filepath.Dir(r.Default().AssetPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger.InfoKV(ctx, "Watching audio assets", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			custom, err := r.Resolve(ModeCustom)
			if err != nil || filepath.Clean(event.Name) != filepath.Clean(custom.AssetPath) {
				continue
			}

			if err := ValidateAsset(custom.AssetPath); err != nil {
				logger.WarnKV(ctx, "Custom asset replaced with unreadable file", "path", custom.AssetPath, "error", err)
				continue
			}

			logger.InfoKV(ctx, "Custom asset updated on disk", "path", custom.AssetPath)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.WarnKV(ctx, "Asset watcher error", "error", err)
		}
	}
}
