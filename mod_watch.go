package sparkle

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// AssetWatcher collects file change events for loaded meshes. Events are
// drained on the frame goroutine; a path is reported once no new event has
// arrived for it within the debounce window.
type AssetWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	dirs     map[string]bool
	pending  map[string]time.Time
	now      func() time.Time
}

func NewAssetWatcher(debounce time.Duration) (*AssetWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &AssetWatcher{
		watcher:  w,
		debounce: debounce,
		dirs:     make(map[string]bool),
		pending:  make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Watch starts watching the directory holding path. Directories are
// watched instead of files so editors that replace the file on save are
// still seen.
func (w *AssetWatcher) Watch(path string) error {
	dir := filepath.Dir(path)
	if w.dirs[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// Poll drains queued events without blocking and returns the paths whose
// debounce window has passed, sorted.
func (w *AssetWatcher) Poll() ([]string, []error) {
	var errs []error
	now := w.now()
drain:
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				break drain
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.pending[filepath.Clean(event.Name)] = now
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				break drain
			}
			errs = append(errs, err)
		default:
			break drain
		}
	}

	var due []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	slices.Sort(due)
	return due, errs
}

func (w *AssetWatcher) Release() {
	if w.watcher != nil {
		_ = w.watcher.Close()
		w.watcher = nil
	}
}

// AssetWatchModule reloads meshes whose files change on disk and marks the
// effects using them dirty.
type AssetWatchModule struct {
	Debounce time.Duration
}

func (mod AssetWatchModule) Install(app *App, cmd *Commands) {
	w, err := NewAssetWatcher(mod.Debounce)
	if err != nil {
		cmd.Logger().Warnf("asset watching disabled: %v", err)
		return
	}
	cmd.AddResources(w)
	cmd.UseSystem(System(assetWatchSystem).InStage(PreUpdate))
}

func assetWatchSystem(cmd *Commands, assets *AssetServer, w *AssetWatcher) {
	log := cmd.Logger()
	for _, path := range assets.MeshPaths() {
		if err := w.Watch(path); err != nil {
			log.Warnf("watch %s: %v", path, err)
		}
	}

	changed, errs := w.Poll()
	for _, err := range errs {
		log.Warnf("asset watcher: %v", err)
	}
	for _, path := range changed {
		id, ok := assets.MeshByPath(path)
		if !ok {
			continue
		}
		if err := assets.ReloadMesh(id); err != nil {
			log.Warnf("reload %s: %v", path, err)
			continue
		}
		n := MarkMeshDirty(cmd, id)
		log.Infof("reloaded %s, %d effect(s) invalidated", path, n)
	}
}
