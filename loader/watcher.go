package loader

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchPluginDir watches the plugin directory and invokes onChange with the
// plugin name whenever a .so file is written or created. Since the loader
// re-resolves on every Load, a rewritten binary takes effect on the next
// deploy; the callback exists so operators can be told a hot-swap is ready.
// The watch runs until stop is closed.
func WatchPluginDir(dir string, onChange func(plugin string), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching plugin directory: %s", dir)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".so" {
				continue
			}
			name := filepath.Base(event.Name)
			plugin := name[:len(name)-len(".so")]
			log.Printf("Plugin %s updated on disk; next load picks it up", plugin)
			if onChange != nil {
				onChange(plugin)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Plugin watcher error: %v", err)
		case <-stop:
			return nil
		}
	}
}
