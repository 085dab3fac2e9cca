package registry

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"modelmgrd/internal/common/fsutil"
	"modelmgrd/pkg/types"
)

// debounce delay between a filesystem event and the rescan, so half-written
// artifact copies are not picked up mid-transfer.
const rescanDelay = 2 * time.Second

// Watch rescans dir whenever a *.gguf file appears, changes or disappears and
// calls onScan with the fresh descriptor list. It blocks until ctx is
// canceled. Watcher errors are logged; the loop keeps running.
func Watch(ctx context.Context, dir string, log zerolog.Logger, onScan func([]types.ModelDescriptor)) error {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(base); err != nil {
		return err
	}
	log.Info().Str("dir", base).Msg("watching models directory")

	var pending *time.Timer
	var pendingC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(strings.ToLower(filepath.Base(ev.Name)), ".gguf") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(rescanDelay)
				pendingC = pending.C
			} else {
				pending.Reset(rescanDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("models dir watcher error")
		case <-pendingC:
			pending = nil
			pendingC = nil
			models, err := LoadDir(base)
			if err != nil {
				log.Warn().Err(err).Msg("models dir rescan failed")
				continue
			}
			onScan(models)
		}
	}
}
