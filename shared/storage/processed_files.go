package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ProcessedFiles is a persistent set of inbox files already ingested, keyed by
// content hash so renamed copies are not processed twice
type ProcessedFiles struct {
	filePath  string
	processed map[string]ProcessedFile
	inFlight  map[string]struct{}
	mu        sync.RWMutex
	maxAge    time.Duration
}

// ProcessedFile is one ingested inbox file
type ProcessedFile struct {
	Hash         string    `json:"hash"`
	Filename     string    `json:"filename"`
	TranscriptID int64     `json:"transcript_id"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// NewProcessedFiles opens (or creates) the tracker file in dataDir.
// Entries older than maxAge are dropped; zero keeps entries forever.
func NewProcessedFiles(dataDir string, maxAge time.Duration) (*ProcessedFiles, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	tracker := &ProcessedFiles{
		filePath:  filepath.Join(dataDir, "processed_files.json"),
		processed: make(map[string]ProcessedFile),
		inFlight:  make(map[string]struct{}),
		maxAge:    maxAge,
	}

	if err := tracker.load(); err != nil {
		return nil, fmt.Errorf("failed to load processed file data: %w", err)
	}

	tracker.cleanup()

	return tracker, nil
}

// ContentHash is the tracker key for a file body
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (pf *ProcessedFiles) IsProcessed(hash string) bool {
	pf.mu.RLock()
	defer pf.mu.RUnlock()

	return pf.isProcessed(hash)
}

func (pf *ProcessedFiles) isProcessed(hash string) bool {
	entry, exists := pf.processed[hash]
	if !exists {
		return false
	}
	return pf.maxAge <= 0 || time.Since(entry.ProcessedAt) < pf.maxAge
}

// Claim reserves hash for ingestion. It returns false when the content was
// already processed or another caller holds the claim. A successful claim ends
// with MarkProcessed or Release.
func (pf *ProcessedFiles) Claim(hash string) bool {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	if _, busy := pf.inFlight[hash]; busy || pf.isProcessed(hash) {
		return false
	}
	pf.inFlight[hash] = struct{}{}
	return true
}

// Release drops a claim without recording the file
func (pf *ProcessedFiles) Release(hash string) {
	pf.mu.Lock()
	delete(pf.inFlight, hash)
	pf.mu.Unlock()
}

// MarkProcessed records a file and persists the tracker
func (pf *ProcessedFiles) MarkProcessed(hash, filename string, transcriptID int64) error {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	delete(pf.inFlight, hash)
	pf.processed[hash] = ProcessedFile{
		Hash:         hash,
		Filename:     filename,
		TranscriptID: transcriptID,
		ProcessedAt:  time.Now(),
	}
	return pf.save()
}

func (pf *ProcessedFiles) Count() int {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	return len(pf.processed)
}

func (pf *ProcessedFiles) cleanup() {
	if pf.maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-pf.maxAge)

	for hash, entry := range pf.processed {
		if entry.ProcessedAt.Before(cutoff) {
			delete(pf.processed, hash)
		}
	}
}

func (pf *ProcessedFiles) load() error {
	file, err := os.Open(pf.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open tracker file: %w", err)
	}
	defer file.Close()

	var entries []ProcessedFile
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode tracker data: %w", err)
	}

	for _, e := range entries {
		pf.processed[e.Hash] = e
	}

	return nil
}

// save writes through a temp file so a crash never leaves a truncated tracker
func (pf *ProcessedFiles) save() error {
	entries := make([]ProcessedFile, 0, len(pf.processed))
	for _, e := range pf.processed {
		entries = append(entries, e)
	}

	tmp := pf.filePath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode tracker data: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close tracker file: %w", err)
	}

	return os.Rename(tmp, pf.filePath)
}
