package sources

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/erg0nix/samtale/internal/core"
)

var documentExtensions = map[string]bool{".pdf": true}

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".wmv": true,
	".flv": true, ".webm": true, ".mkv": true,
}

const debounceInterval = 500 * time.Millisecond

// Watched is the slice of Manager the watcher drives.
type Watched interface {
	Reconcile(ctx context.Context, desired []Upload) BatchResult
	Active() []*core.Source
}

// DirWatcher treats a media directory as the desired source set: every
// create/remove event debounces into one reconcile batch against the
// manager. URL-ingested videos stay in the desired set since they have no
// file on disk.
type DirWatcher struct {
	manager  Watched
	mediaDir string
	notifier *fsnotify.Watcher
}

func NewDirWatcher(manager Watched, mediaDir string) (*DirWatcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := notifier.Add(mediaDir); err != nil {
		notifier.Close()
		return nil, err
	}

	return &DirWatcher{manager: manager, mediaDir: mediaDir, notifier: notifier}, nil
}

// Run blocks until ctx is done, reconciling after each debounced burst of
// relevant filesystem events. An initial reconcile brings the active set in
// line with the directory at startup.
func (w *DirWatcher) Run(ctx context.Context) {
	defer w.notifier.Close()

	w.reconcile(ctx)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceInterval)
				timerC = timer.C
			} else {
				timer.Reset(debounceInterval)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reconcile(ctx)

		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			slog.Warn("media watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	ext := strings.ToLower(filepath.Ext(event.Name))
	return documentExtensions[ext] || videoExtensions[ext]
}

func (w *DirWatcher) reconcile(ctx context.Context) {
	desired, err := ScanMediaDir(w.mediaDir)
	if err != nil {
		slog.Warn("media directory scan failed", "dir", w.mediaDir, "error", err)
		return
	}

	// URL videos have no file presence; keep them desired.
	for _, src := range w.manager.Active() {
		if src.Kind == core.KindVideo && src.URL != "" {
			desired = append(desired, Upload{Name: src.Name, Kind: core.KindVideo, URL: src.URL})
		}
	}

	result := w.manager.Reconcile(ctx, desired)
	if !result.Empty() {
		slog.Info("media directory reconciled",
			"added", len(result.Added), "removed", len(result.Removed), "failed", len(result.Failed))
	}
}

// KindForPath maps a file extension to its source kind.
func KindForPath(path string) (core.SourceKind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case documentExtensions[ext]:
		return core.KindDocument, true
	case videoExtensions[ext]:
		return core.KindVideo, true
	}
	return "", false
}

// ScanMediaDir lists the media files of a directory as a desired upload set.
func ScanMediaDir(dir string) ([]Upload, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var uploads []Upload
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))

		switch {
		case documentExtensions[ext]:
			uploads = append(uploads, Upload{Name: name, Kind: core.KindDocument, Path: filepath.Join(dir, name)})
		case videoExtensions[ext]:
			uploads = append(uploads, Upload{Name: name, Kind: core.KindVideo, Path: filepath.Join(dir, name)})
		}
	}

	return uploads, nil
}
