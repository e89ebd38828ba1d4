package storage

import (
	"context"
	"errors"

	"transcript-stack/internal/models"
)

// ErrNotFound is returned when the transcript a call refers to does not exist
var ErrNotFound = errors.New("transcript not found")

// Store persists transcripts and everything derived from them. Ideas, rewrites and
// metadata are keyed 1:1 by transcript ID; saving one replaces the previous row
// entirely. Getters for derived rows return nil, nil when no row exists.
// Deleting a transcript deletes everything it owns.
type Store interface {
	CreateTranscript(ctx context.Context, t models.NewTranscript) (*models.Transcript, error)
	GetTranscript(ctx context.Context, id int64) (*models.Transcript, error)
	// ListTranscripts returns every transcript, newest first
	ListTranscripts(ctx context.Context) ([]models.Transcript, error)
	// ListWithoutMetadata returns up to limit transcripts with no metadata row, oldest first
	ListWithoutMetadata(ctx context.Context, limit int) ([]models.Transcript, error)
	UpdateProcessedContent(ctx context.Context, id int64, content string) error
	DeleteTranscript(ctx context.Context, id int64) error

	SavePostIdeas(ctx context.Context, id int64, content string) error
	GetPostIdeas(ctx context.Context, id int64) (*models.PostIdeas, error)
	DeletePostIdeas(ctx context.Context, id int64) error

	SaveRewrite(ctx context.Context, id int64, content string, options models.RewriteConfig) error
	GetRewrite(ctx context.Context, id int64) (*models.RewriteRecord, error)
	DeleteRewrite(ctx context.Context, id int64) error

	SaveMetadata(ctx context.Context, id int64, m models.TranscriptMetadata) error
	GetMetadata(ctx context.Context, id int64) (*models.TranscriptMetadata, error)
	DeleteMetadata(ctx context.Context, id int64) error

	AppendEvent(ctx context.Context, e models.AnalyticsEvent) error
	AnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error)

	Close() error
}

// Detail keys used in analytics payloads
const (
	DetailOptions     = "options"
	DetailFormatStyle = "format_style"
	DetailFilename    = "filename"
)
