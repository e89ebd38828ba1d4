package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"transcript-stack/agents/transcriber/youtube"
	"transcript-stack/internal/models"
	"transcript-stack/shared/ai"
	"transcript-stack/shared/extract"
	"transcript-stack/shared/markdown"
	"transcript-stack/shared/prompt"
	"transcript-stack/shared/storage"
)

var (
	// ErrEmptyTranscript is returned when an input yields no text to process
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrCaptionsDisabled is returned by ImportYouTube when no caption source is configured
	ErrCaptionsDisabled = errors.New("YouTube caption import is not configured")

	ErrUnsupportedExport = errors.New("unsupported export format")
)

// CaptionSource downloads caption tracks for a video reference
type CaptionSource interface {
	FetchCaptions(ctx context.Context, ref string) (*youtube.Captions, error)
}

// IngestRequest is one raw input to run through the formatting pipeline
type IngestRequest struct {
	Filename   string
	Data       []byte
	SourceKind models.SourceKind
	Formatting models.FormattingConfig
}

// TranscriptView is a transcript together with its metadata, if analyzed
type TranscriptView struct {
	models.Transcript
	Metadata *models.TranscriptMetadata `json:"metadata"`
}

// Service runs the pipeline operations against a Store. It keeps no per-request state.
type Service struct {
	store           storage.Store
	invoker         *ai.Invoker
	analyzer        *ai.MetadataAnalyzer
	captions        CaptionSource
	formatMaxTokens int32
}

type Option func(*Service)

// WithCaptions enables YouTube caption import
func WithCaptions(src CaptionSource) Option {
	return func(s *Service) { s.captions = src }
}

// WithFormatMaxTokens bounds the length of formatting and rewrite output
func WithFormatMaxTokens(n int32) Option {
	return func(s *Service) {
		if n > 0 {
			s.formatMaxTokens = n
		}
	}
}

func NewService(store storage.Store, invoker *ai.Invoker, opts ...Option) *Service {
	s := &Service{
		store:           store,
		invoker:         invoker,
		analyzer:        ai.NewMetadataAnalyzer(invoker),
		formatMaxTokens: ai.DefaultFormatMaxTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest extracts, formats and stores a transcript, then analyzes its metadata
// and records a format event. Formatting failures do not fail the ingest.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*TranscriptView, error) {
	res := extract.Extract(req.Filename, req.Data)
	if res.Fallback {
		log.Printf("Warning: could not parse %s as %s, using raw text", req.Filename, res.Format)
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, ErrEmptyTranscript
	}

	cfg := req.Formatting
	if !cfg.Style.Valid() {
		cfg.Style = models.StyleArticle
	}
	kind := req.SourceKind
	if !kind.Valid() {
		kind = models.SourceUpload
	}
	filename := strings.TrimSpace(filepath.Base(req.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		filename = fmt.Sprintf("transcript-%s.txt", time.Now().Format("20060102-150405"))
	}

	processed, ok := s.format(ctx, res.Text, cfg)

	t, err := s.store.CreateTranscript(ctx, models.NewTranscript{
		Filename:         filename,
		OriginalContent:  res.Text,
		ProcessedContent: processed,
		FormatStyle:      cfg.Style,
		SourceKind:       kind,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save transcript: %w", err)
	}

	analyzed := processed
	if !ok {
		analyzed = res.Text
	}
	md := s.analyzer.Analyze(ctx, analyzed)
	if err := s.store.SaveMetadata(ctx, t.ID, md); err != nil {
		log.Printf("Warning: failed to save metadata for transcript %d: %v", t.ID, err)
	}

	s.logEvent(ctx, t.ID, models.ActionFormat, map[string]any{
		storage.DetailFormatStyle: string(cfg.Style),
		storage.DetailFilename:    filename,
	})

	log.Printf("Ingested %s as transcript %d (%s, %d chars)", filename, t.ID, res.Format, len(res.Text))
	return &TranscriptView{Transcript: *t, Metadata: &md}, nil
}

// Format returns the formatted document, or the fallback text when the model call fails
func (s *Service) Format(ctx context.Context, text string, cfg models.FormattingConfig) string {
	out, _ := s.format(ctx, text, cfg)
	return out
}

func (s *Service) format(ctx context.Context, text string, cfg models.FormattingConfig) (string, bool) {
	p := prompt.ComposeFormatting(text, cfg)
	out, err := s.invoker.Invoke(ctx, ai.Request{
		Instructions:    p.System,
		Text:            p.User,
		Temperature:     ai.TemperatureFormat,
		MaxOutputTokens: s.formatMaxTokens,
	})
	if err != nil {
		log.Printf("Warning: formatting failed, keeping original text: %v", err)
		return fmt.Sprintf("%s%s\n\nOriginal text:\n%s", formatFailurePrefix, ai.ErrorMessage(err), text), false
	}
	return markdown.NormalizeHeadings(out), true
}

// Rewrite restyles a transcript's processed content. Invalid options are rejected
// with a *prompt.ValidationError before any model call. A generation failure
// returns the "ERROR:" text together with the *ai.GenerationError and saves nothing.
func (s *Service) Rewrite(ctx context.Context, id int64, rc models.RewriteConfig) (string, error) {
	if err := prompt.Validate(rc); err != nil {
		return "", err
	}

	t, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		return "", err
	}

	p, err := prompt.ComposeRewrite(sourceText(t), rc)
	if err != nil {
		return "", err
	}

	out, err := s.invoker.Invoke(ctx, ai.Request{
		Instructions:    p.System,
		Text:            p.User,
		Temperature:     ai.TemperatureRewrite,
		MaxOutputTokens: s.formatMaxTokens,
	})
	if err != nil {
		log.Printf("Warning: rewrite of transcript %d failed: %v", id, err)
		return "ERROR: " + ai.ErrorMessage(err), err
	}

	content := markdown.NormalizeHeadings(out)
	if err := s.store.SaveRewrite(ctx, id, content, rc); err != nil {
		return "", fmt.Errorf("failed to save rewrite: %w", err)
	}
	s.logEvent(ctx, id, models.ActionRewrite, map[string]any{storage.DetailOptions: rc.Encode()})

	return content, nil
}

// GenerateIdeas produces social post ideas. Failures behave as in Rewrite.
func (s *Service) GenerateIdeas(ctx context.Context, id int64) (string, error) {
	t, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		return "", err
	}

	p := prompt.ComposeIdeas(sourceText(t))
	out, err := s.invoker.Invoke(ctx, ai.Request{
		Instructions: p.System,
		Text:         p.User,
		Temperature:  ai.TemperatureIdeas,
	})
	if err != nil {
		log.Printf("Warning: idea generation for transcript %d failed: %v", id, err)
		return "ERROR: " + ai.ErrorMessage(err), err
	}

	if err := s.store.SavePostIdeas(ctx, id, out); err != nil {
		return "", fmt.Errorf("failed to save post ideas: %w", err)
	}
	s.logEvent(ctx, id, models.ActionGenerateIdeas, map[string]any{})

	return out, nil
}

// Reanalyze reruns metadata extraction and replaces the stored record
func (s *Service) Reanalyze(ctx context.Context, id int64) (*models.TranscriptMetadata, error) {
	t, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.analyzer.Analyze(ctx, sourceText(t))
	if err := s.store.SaveMetadata(ctx, id, md); err != nil {
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}
	return &md, nil
}

// ImportYouTube downloads a video's captions and ingests them as SubRip
func (s *Service) ImportYouTube(ctx context.Context, ref string, cfg models.FormattingConfig) (*TranscriptView, error) {
	if s.captions == nil {
		return nil, ErrCaptionsDisabled
	}

	caps, err := s.captions.FetchCaptions(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("caption import failed: %w", err)
	}

	return s.Ingest(ctx, IngestRequest{
		Filename:   caps.Filename(),
		Data:       caps.SRT,
		SourceKind: models.SourceYouTube,
		Formatting: cfg,
	})
}

// CaptionsEnabled reports whether ImportYouTube can run
func (s *Service) CaptionsEnabled() bool {
	return s.captions != nil
}

func (s *Service) UpdateProcessed(ctx context.Context, id int64, content string) error {
	return s.store.UpdateProcessedContent(ctx, id, content)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteTranscript(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*TranscriptView, error) {
	t, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}
	md, err := s.store.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TranscriptView{Transcript: *t, Metadata: md}, nil
}

func (s *Service) List(ctx context.Context) ([]models.Transcript, error) {
	return s.store.ListTranscripts(ctx)
}

func (s *Service) GetRewrite(ctx context.Context, id int64) (*models.RewriteRecord, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetRewrite(ctx, id)
}

func (s *Service) DeleteRewrite(ctx context.Context, id int64) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteRewrite(ctx, id)
}

func (s *Service) GetIdeas(ctx context.Context, id int64) (*models.PostIdeas, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetPostIdeas(ctx, id)
}

func (s *Service) DeleteIdeas(ctx context.Context, id int64) error {
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	return s.store.DeletePostIdeas(ctx, id)
}

func (s *Service) GetMetadata(ctx context.Context, id int64) (*models.TranscriptMetadata, error) {
	if err := s.exists(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetMetadata(ctx, id)
}

func (s *Service) Summary(ctx context.Context) (*models.AnalyticsSummary, error) {
	return s.store.AnalyticsSummary(ctx)
}

// Export formats
const (
	ExportMarkdown = "md"
	ExportDocx     = "docx"
)

// Export is a downloadable rendering of a transcript
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Export renders the processed content as markdown or a Word document
func (s *Service) Export(ctx context.Context, id int64, format string) (*Export, error) {
	t, err := s.store.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(t.Filename, filepath.Ext(t.Filename))
	content := sourceText(t)

	switch format {
	case "", ExportMarkdown:
		return &Export{
			Filename:    base + ".md",
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(content),
		}, nil
	case ExportDocx:
		body, err := markdown.ToDocx(base, content)
		if err != nil {
			return nil, fmt.Errorf("failed to render docx: %w", err)
		}
		return &Export{
			Filename:    base + ".docx",
			ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			Body:        body,
		}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnsupportedExport, format)
}

func (s *Service) exists(ctx context.Context, id int64) error {
	_, err := s.store.GetTranscript(ctx, id)
	return err
}

func (s *Service) logEvent(ctx context.Context, id int64, action models.AnalyticsAction, details map[string]any) {
	err := s.store.AppendEvent(ctx, models.AnalyticsEvent{
		TranscriptID: id,
		Action:       action,
		Details:      details,
	})
	if err != nil {
		log.Printf("Warning: failed to record %s event for transcript %d: %v", action, id, err)
	}
}

// formatFailurePrefix starts the processed content stored when formatting failed
const formatFailurePrefix = "Error processing with AI: "

// sourceText is the text derived operations work from. A stored formatting
// failure note is skipped in favour of the original text.
func sourceText(t *models.Transcript) string {
	processed := t.ProcessedContent
	if strings.TrimSpace(processed) != "" && !strings.HasPrefix(processed, formatFailurePrefix) {
		return processed
	}
	return t.OriginalContent
}
