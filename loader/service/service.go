package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"legis/loader/internal"
	"legis/metrics"
	"legis/store"
)

const shutdownTimeout = 5 * time.Second

type Service struct {
	logger  *slog.Logger
	store   store.DBStorer
	loader  *internal.ActLoader
	metrics *metrics.Metrics
}

func New(storer store.DBStorer, loader *internal.ActLoader, m *metrics.Metrics) *Service {
	return &Service{
		logger:  slog.Default().With("component", "loader-service"),
		store:   storer,
		loader:  loader,
		metrics: m,
	}
}

// Run watches the source directory until ctx is done. Watcher, processor
// and saver run in their own goroutines joined by channels.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fileChan := make(chan string, 10)
	batchChan := make(chan internal.Batch)
	var (
		wg       sync.WaitGroup
		watchErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		if err := s.loader.WatchFile(ctx, fileChan); err != nil {
			watchErr = err
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(batchChan)
		s.loader.ProcessFile(ctx, fileChan, batchChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.BatchSave(ctx, batchChan)
	}()

	<-ctx.Done()
	s.logger.Info("shutting down loader")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("all goroutines stopped")
		return watchErr
	case <-time.After(shutdownTimeout):
		return errors.New("timeout waiting for goroutines to stop")
	}
}

// BatchSave stores every batch and moves its file to the archive, or to the
// bad directory when processing or saving failed.
func (s *Service) BatchSave(ctx context.Context, batchChan <-chan internal.Batch) {
	for batch := range batchChan {
		state := internal.StateArchived
		if err := s.SaveBatch(ctx, batch); err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Warn("save interrupted, file left in place", "file", batch.SourcePath)
				s.loader.Done(batch.SourcePath)
				continue
			}
			s.logger.Error("failed to load act file", "file", batch.SourcePath, "error", err)
			state = internal.StateBad
		}
		if _, err := s.loader.MoveToArchive(batch.SourcePath, state); err != nil {
			s.logger.Error("failed to move file", "file", batch.SourcePath, "error", err)
		}
		s.loader.Done(batch.SourcePath)
	}
}

// SaveBatch resolves missing categories and upserts every act of batch.
func (s *Service) SaveBatch(ctx context.Context, batch internal.Batch) error {
	if batch.Err != nil {
		s.count("invalid", 1)
		return batch.Err
	}

	for _, parsed := range batch.Acts {
		act := parsed.Act
		if act.Category == nil && len(act.Keywords) > 0 {
			category, err := s.store.FindCategoryByKeywords(ctx, act.Keywords)
			if err != nil {
				s.count("error", 1)
				return fmt.Errorf("find category for %q: %w", parsed.Key, err)
			}
			if category != "" {
				act.Category = &category
			}
		}

		id, err := s.store.SaveAct(ctx, parsed.Key, act)
		if err != nil {
			s.count("error", 1)
			return fmt.Errorf("save act %q: %w", parsed.Key, err)
		}
		s.logger.Info("act saved", "id", id, "eli", parsed.Key, "title", act.Title)
		s.count("saved", 1)
	}
	return nil
}

// Import loads the given files once, without the watcher. Files are left in
// place; the first failure is returned after all files were tried.
func (s *Service) Import(ctx context.Context, paths []string) error {
	var firstErr error
	for _, path := range paths {
		if err := s.SaveBatch(ctx, s.loader.ReadFile(path)); err != nil {
			s.logger.Error("import failed", "file", path, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", path, err)
			}
			continue
		}
		s.logger.Info("file imported", "file", path)
	}
	return firstErr
}

func (s *Service) count(result string, n int) {
	if s.metrics != nil {
		s.metrics.ActsImported.WithLabelValues(result).Add(float64(n))
	}
}
