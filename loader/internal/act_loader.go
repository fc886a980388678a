package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"legis/types"
)

type FileState int

const (
	StateArchived FileState = iota
	StateBad
)

// Batch is the outcome of processing one source file.
type Batch struct {
	SourcePath string
	Acts       []ParsedAct
	Err        error
}

// ActLoader watches the source directory and turns settled act files into
// batches. A file is settled once it saw no change for MonitoringTime.
type ActLoader struct {
	cfg           types.Config
	logger        *slog.Logger
	governmentFor func(term int) []string
	tick          time.Duration

	FileMutex       sync.Mutex
	FileFirstSeen   map[string]time.Time
	FilesProcessing map[string]bool
}

func NewActLoader(cfg types.Config, governmentFor func(term int) []string) (*ActLoader, error) {
	if err := createDirectories(cfg.SourceDir, cfg.ArchiveDir, cfg.BadDir); err != nil {
		return nil, fmt.Errorf("create loader directories: %w", err)
	}
	return &ActLoader{
		cfg:             cfg,
		logger:          slog.Default().With("component", "loader"),
		governmentFor:   governmentFor,
		tick:            time.Second,
		FileFirstSeen:   make(map[string]time.Time),
		FilesProcessing: make(map[string]bool),
	}, nil
}

func isActFile(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), ".json")
}

// touch restarts the settle period of path.
func (l *ActLoader) touch(path string) {
	l.FileMutex.Lock()
	defer l.FileMutex.Unlock()
	if l.FilesProcessing[path] {
		return
	}
	if _, seen := l.FileFirstSeen[path]; !seen {
		l.logger.Info("new file detected", "file", path)
	}
	l.FileFirstSeen[path] = time.Now()
}

// WatchFile sends settled files to fileChan until ctx is done. fsnotify
// events restart a file's settle period; a periodic scan picks up files that
// were present before the watch started.
func (l *ActLoader) WatchFile(ctx context.Context, fileChan chan<- string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(l.cfg.SourceDir); err != nil {
		return fmt.Errorf("watch %s: %w", l.cfg.SourceDir, err)
	}
	l.logger.Info("start monitoring folder", "dir", l.cfg.SourceDir)
	defer l.logger.Info("file watcher stopped")

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isActFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				l.touch(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn("watcher error", "error", err)
		case <-ticker.C:
			for _, path := range l.scan() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// scan refreshes tracking from the directory listing and returns the files
// that became ready.
func (l *ActLoader) scan() []string {
	files, err := os.ReadDir(l.cfg.SourceDir)
	if err != nil {
		l.logger.Error("error while reading source directory", "error", err)
		return nil
	}

	l.FileMutex.Lock()
	defer l.FileMutex.Unlock()

	var ready []string
	current := make(map[string]bool, len(files))
	for _, file := range files {
		if file.IsDir() || !isActFile(file.Name()) {
			continue
		}
		path := filepath.Join(l.cfg.SourceDir, file.Name())
		current[path] = true

		if l.FilesProcessing[path] {
			continue
		}
		firstSeen, exists := l.FileFirstSeen[path]
		if !exists {
			l.FileFirstSeen[path] = time.Now()
			l.logger.Info("new file detected", "file", path)
			continue
		}
		if time.Since(firstSeen) > l.cfg.MonitoringTime {
			l.FilesProcessing[path] = true
			ready = append(ready, path)
		}
	}

	for path := range l.FileFirstSeen {
		if !current[path] {
			delete(l.FileFirstSeen, path)
			delete(l.FilesProcessing, path)
		}
	}
	return ready
}

// ProcessFile turns every file from fileChan into a batch on batchChan. It
// returns when fileChan is closed or ctx is done.
func (l *ActLoader) ProcessFile(ctx context.Context, fileChan <-chan string, batchChan chan<- Batch) {
	defer l.logger.Info("file processor stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-fileChan:
			if !ok {
				return
			}
			batch := l.ReadFile(path)
			select {
			case batchChan <- batch:
			case <-ctx.Done():
				l.release(path)
				return
			}
		}
	}
}

// Done stops tracking path once the saver moved it away.
func (l *ActLoader) Done(path string) {
	l.FileMutex.Lock()
	defer l.FileMutex.Unlock()
	delete(l.FilesProcessing, path)
	delete(l.FileFirstSeen, path)
}

// release returns path to the watcher so it is picked up again.
func (l *ActLoader) release(path string) {
	l.FileMutex.Lock()
	defer l.FileMutex.Unlock()
	delete(l.FilesProcessing, path)
}

// ReadFile decodes and converts every act in path. Any invalid act fails
// the whole file.
func (l *ActLoader) ReadFile(path string) Batch {
	batch := Batch{SourcePath: path}

	data, err := os.ReadFile(path)
	if err != nil {
		batch.Err = fmt.Errorf("read %s: %w", path, err)
		return batch
	}
	raws, err := DecodeActs(data)
	if err != nil {
		batch.Err = err
		return batch
	}

	for _, raw := range raws {
		parsed, err := raw.ToAct(l.governmentFor)
		if err != nil {
			batch.Err = err
			return batch
		}
		if IsLocalPDF(parsed.Act.File) {
			pdfPath := parsed.Act.File
			if !filepath.IsAbs(pdfPath) {
				pdfPath = filepath.Join(filepath.Dir(path), pdfPath)
			}
			pages, err := ValidatePDF(pdfPath)
			if err != nil {
				batch.Err = fmt.Errorf("act %q: %w", parsed.Key, err)
				return batch
			}
			l.logger.Debug("pdf validated", "file", pdfPath, "pages", pages)
		}
		batch.Acts = append(batch.Acts, parsed)
	}
	return batch
}

// MoveToArchive moves a processed file into a dated subdirectory of the
// archive or bad directory, suffixing the name on collisions.
func (l *ActLoader) MoveToArchive(filePath string, state FileState) (string, error) {
	root := l.cfg.ArchiveDir
	if state == StateBad {
		root = l.cfg.BadDir
	}

	destDir := filepath.Join(root, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	destPath := filepath.Join(destDir, filepath.Base(filePath))
	ext := filepath.Ext(destPath)
	baseName := strings.TrimSuffix(filepath.Base(destPath), ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); errors.Is(err, os.ErrNotExist) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", baseName, counter, ext))
	}

	if err := os.Rename(filePath, destPath); err != nil {
		// rename fails across devices
		if err := copyFile(filePath, destPath); err != nil {
			return "", fmt.Errorf("error moving file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", err
		}
	}
	l.logger.Info("file moved", "from", filePath, "to", destPath)
	return destPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
