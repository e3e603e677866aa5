package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// WatchCredentials keeps the session's IsAuthenticated flag in step with the
// credential file in dir, which other processes may write or remove. It
// blocks until ctx is done.
func WatchCredentials(ctx context.Context, session *Session, dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != CredentialFilename {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			authenticated := session.Restore()
			log.Debugf("Credentials changed on disk (%s), authenticated=%t", event.Op, authenticated)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Credential watcher error: %v", err)
		}
	}
}
