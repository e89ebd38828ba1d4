package transcriber

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"transcript-stack/internal/models"
	"transcript-stack/shared/extract"
	"transcript-stack/shared/storage"
)

const defaultSettleDelay = 500 * time.Millisecond

// InboxOptions configure the folder watcher
type InboxOptions struct {
	Dir           string
	MaxConcurrent int
	Formatting    models.FormattingConfig
	// SettleDelay is how long a file must go without writes before it is picked up
	SettleDelay time.Duration
}

// Inbox ingests transcript files dropped into a directory. Content already
// ingested, by hash, is skipped, including across restarts.
type Inbox struct {
	opts      InboxOptions
	service   *Service
	tracker   *storage.ProcessedFiles
	watcher   *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewInbox(opts InboxOptions, service *Service, tracker *storage.ProcessedFiles) (*Inbox, error) {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create inbox directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(opts.Dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", opts.Dir, err)
	}

	return &Inbox{
		opts:      opts,
		service:   service,
		tracker:   tracker,
		watcher:   w,
		semaphore: make(chan struct{}, opts.MaxConcurrent),
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Start picks up files already in the inbox, then blocks handling watcher
// events until ctx is cancelled. In-flight files finish before it returns.
func (in *Inbox) Start(ctx context.Context) error {
	log.Printf("Inbox watcher started (max concurrent: %d). Monitoring: %s", in.opts.MaxConcurrent, in.opts.Dir)

	entries, err := os.ReadDir(in.opts.Dir)
	if err != nil {
		log.Printf("Warning: failed to scan inbox: %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			in.schedule(ctx, filepath.Join(in.opts.Dir, e.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			in.stopTimers()
			in.wg.Wait()
			log.Println("Inbox watcher stopped")
			return ctx.Err()

		case event, ok := <-in.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if shouldIngest(event.Name) {
				in.schedule(ctx, event.Name)
			}

		case err, ok := <-in.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			log.Printf("Inbox watcher error: %v", err)
		}
	}
}

func (in *Inbox) Close() error {
	return in.watcher.Close()
}

// schedule debounces events per path so a file is read once writes stop
func (in *Inbox) schedule(ctx context.Context, path string) {
	if !shouldIngest(path) {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if t, ok := in.pending[path]; ok && t.Stop() {
		t.Reset(in.opts.SettleDelay)
		return
	}

	in.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(in.opts.SettleDelay, func() {
		defer in.wg.Done()

		in.mu.Lock()
		if in.pending[path] == timer {
			delete(in.pending, path)
		}
		in.mu.Unlock()

		select {
		case in.semaphore <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-in.semaphore }()

		if _, err := in.ProcessFile(ctx, path); err != nil {
			log.Printf("Failed to ingest %s: %v", path, err)
		}
	})
	in.pending[path] = timer
}

func (in *Inbox) stopTimers() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for path, t := range in.pending {
		if t.Stop() {
			in.wg.Done()
		}
		delete(in.pending, path)
	}
}

// ProcessFile ingests one inbox file. It reports false when the content was seen before.
func (in *Inbox) ProcessFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	hash := storage.ContentHash(data)
	if !in.tracker.Claim(hash) {
		log.Printf("Skipping %s, content already ingested", filepath.Base(path))
		return false, nil
	}

	view, err := in.service.Ingest(ctx, IngestRequest{
		Filename:   filepath.Base(path),
		Data:       data,
		SourceKind: models.SourceInbox,
		Formatting: in.opts.Formatting,
	})
	if err != nil {
		in.tracker.Release(hash)
		return false, err
	}

	if err := in.tracker.MarkProcessed(hash, filepath.Base(path), view.ID); err != nil {
		log.Printf("Warning: failed to record processed file %s: %v", path, err)
	}
	return true, nil
}

// shouldIngest skips hidden and partial files and anything without a known extension
func shouldIngest(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return false
	}
	for _, suffix := range []string{".part", ".tmp", ".crdownload"} {
		if strings.HasSuffix(strings.ToLower(name), suffix) {
			return false
		}
	}
	return extract.Supported(name)
}
