package certs

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the store whenever cert.pem or key.pem in its directory is
// written or replaced. It runs until ctx is cancelled. A reload that fails
// (for example a half-written pair) keeps the previous material.
func Watch(ctx context.Context, s *Store) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: atomic saves replace the file inode.
	if err := watcher.Add(s.Dir); err != nil {
		return err
	}
	log.Info().Str("module", "certs").Str("dir", s.Dir).Msg("watching certificate files")

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
			name := filepath.Base(event.Name)
			if name != CertFile && name != KeyFile {
				continue
			}

			changed, err := s.Reload()
			if err != nil {
				s.Metrics.CertificateReloadFailed()
				log.Warn().Err(err).Str("module", "certs").Str("file", name).Msg("reload failed, keeping previous certificate")
				continue
			}
			if changed {
				log.Info().Str("module", "certs").Str("file", name).Msg("certificate reloaded from disk")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Str("module", "certs").Msg("watcher error")
		}
	}
}
