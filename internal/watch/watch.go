// Package watch re-runs a full conversion whenever the watched source
// archive changes on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/melaconv/internal/checksum"
)

// Converter converts a source archive into a target archive.
type Converter interface {
	Convert(ctx context.Context, src, dst string) (int, error)
}

// ChecksumStore reports the source checksum of the last successful
// conversion of source into output.
type ChecksumStore interface {
	LastChecksum(source, output string) (string, error)
}

// Syncer converts source to output only when source's content changed since
// the last successful conversion into the same output, or when output is
// missing.
type Syncer struct {
	conv   Converter
	store  ChecksumStore
	source string
	output string
	logger *slog.Logger

	last string
}

// NewSyncer creates a Syncer. store may be nil, in which case only
// conversions made by this Syncer are remembered.
func NewSyncer(conv Converter, store ChecksumStore, source, output string, logger *slog.Logger) *Syncer {
	return &Syncer{conv: conv, store: store, source: source, output: output, logger: logger}
}

// Sync converts if needed and reports whether a conversion ran.
func (s *Syncer) Sync(ctx context.Context) (bool, error) {
	sum, err := checksum.File(s.source)
	if err != nil {
		return false, err
	}

	if sum == s.lastChecksum() && outputExists(s.output) {
		s.logger.Debug("sync: source unchanged", slog.String("source", s.source))
		return false, nil
	}

	if _, err := s.conv.Convert(ctx, s.source, s.output); err != nil {
		return true, err
	}
	s.last = sum
	return true, nil
}

func (s *Syncer) lastChecksum() string {
	if s.last != "" || s.store == nil {
		return s.last
	}
	last, err := s.store.LastChecksum(s.source, s.output)
	if err != nil {
		s.logger.Warn("sync: ledger lookup failed", slog.String("error", err.Error()))
		return ""
	}
	return last
}

func outputExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Watch runs an initial Sync and then watches the source archive's directory
// until ctx is cancelled. Events for the source file are debounced; editors
// and exporters usually write an archive in several steps.
func Watch(ctx context.Context, s *Syncer, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	target := filepath.Clean(s.source)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("source", target), slog.String("output", s.output))

	runSync := func() {
		ran, err := s.Sync(ctx)
		if err != nil {
			logger.Warn("watcher: conversion failed", slog.String("source", target), slog.String("error", err.Error()))
			return
		}
		if ran {
			logger.Debug("watcher: converted", slog.String("source", target))
		}
	}

	runSync()

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			runSync()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
