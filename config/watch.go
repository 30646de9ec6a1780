package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events editors emit for one save.
const watchDebounce = 250 * time.Millisecond

// Watch reloads the settings file whenever it changes on disk and hands the
// result to fn. Files with invalid proxy settings are reported and skipped so
// the previously applied configuration stays active. Watch blocks until ctx is
// done.
func (m *Manager) Watch(ctx context.Context, fn func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: Save replaces the file via rename.
	dir := filepath.Dir(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(m.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[config] watch error: %v", err)
		case <-fire:
			fire = nil
			s, err := m.Load()
			if err != nil {
				log.Printf("[config] reload %s failed: %v", m.path, err)
				continue
			}
			if err := s.Proxy.Validate(); err != nil {
				log.Printf("[config] ignoring reloaded settings: %v", err)
				continue
			}
			fn(s)
		}
	}
}
