package transcriber

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"transcript-stack/agents/transcriber/youtube"
	"transcript-stack/internal/models"
	"transcript-stack/shared/ai"
	"transcript-stack/shared/prompt"
	"transcript-stack/shared/storage"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,000
Hello there.

2
00:00:03,500 --> 00:00:05,000
<i>General</i> Kenobi.
`

const metadataJSON = `{"topics":["greetings"],"keywords":["hello"],"sentiment":{"classification":"positive","confidence":0.9},"tags":["intro"]}`

// fakeBackend answers metadata requests (JSON mode) and text requests separately
type fakeBackend struct {
	mu      sync.Mutex
	text    string
	textErr error
	delay   time.Duration
	calls   []ai.Params
	inputs  []string
}

func (f *fakeBackend) Generate(_ context.Context, messages []ai.Message, params ai.Params) (string, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	f.inputs = append(f.inputs, messages[len(messages)-1].Text)
	if params.JSON {
		return metadataJSON, nil
	}
	return f.text, f.textErr
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(backend *fakeBackend, opts ...Option) (*Service, *storage.Memory) {
	store := storage.NewMemory()
	return NewService(store, ai.NewInvoker(backend, time.Second), opts...), store
}

func ingestSample(t *testing.T, svc *Service) *TranscriptView {
	t.Helper()
	view, err := svc.Ingest(context.Background(), IngestRequest{
		Filename:   "standup.srt",
		Data:       []byte(sampleSRT),
		SourceKind: models.SourceUpload,
		Formatting: models.DefaultFormatting(),
	})
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	return view
}

func TestIngestFormatsAndRecords(t *testing.T) {
	backend := &fakeBackend{text: "# Greetings\nHello there. General Kenobi."}
	svc, store := newTestService(backend)
	ctx := context.Background()

	view := ingestSample(t, svc)

	if view.OriginalContent != "Hello there. General Kenobi." {
		t.Errorf("OriginalContent = %q", view.OriginalContent)
	}
	if view.ProcessedContent != "### Greetings\nHello there. General Kenobi." {
		t.Errorf("ProcessedContent = %q", view.ProcessedContent)
	}
	if view.FormatStyle != models.StyleArticle || view.SourceKind != models.SourceUpload {
		t.Errorf("style/kind = %s/%s", view.FormatStyle, view.SourceKind)
	}
	if view.Metadata == nil || view.Metadata.Sentiment.Classification != "positive" {
		t.Errorf("Metadata = %+v", view.Metadata)
	}

	// format call, then metadata call
	if len(backend.calls) != 2 {
		t.Fatalf("backend calls = %d, want 2", len(backend.calls))
	}
	if backend.calls[0].Temperature != ai.TemperatureFormat || backend.calls[0].MaxOutputTokens != ai.DefaultFormatMaxTokens {
		t.Errorf("format params = %+v", backend.calls[0])
	}
	if backend.calls[1].Temperature != ai.TemperatureMetadata || !backend.calls[1].JSON {
		t.Errorf("metadata params = %+v", backend.calls[1])
	}

	stored, err := store.GetMetadata(ctx, view.ID)
	if err != nil || stored == nil {
		t.Fatalf("metadata not stored: %v", err)
	}

	summary, err := store.AnalyticsSummary(ctx)
	if err != nil {
		t.Fatalf("AnalyticsSummary() error: %v", err)
	}
	if len(summary.ActionCounts) != 1 || summary.ActionCounts[0] != (models.CountedValue{Value: "format", Count: 1}) {
		t.Errorf("ActionCounts = %+v", summary.ActionCounts)
	}
	if len(summary.PopularFormats) != 1 || summary.PopularFormats[0].Value != "article" {
		t.Errorf("PopularFormats = %+v", summary.PopularFormats)
	}
}

func TestIngestFormattingFailureFallsBack(t *testing.T) {
	backend := &fakeBackend{textErr: errors.New("quota exceeded")}
	svc, _ := newTestService(backend)

	view := ingestSample(t, svc)

	want := "Error processing with AI: quota exceeded\n\nOriginal text:\nHello there. General Kenobi."
	if view.ProcessedContent != want {
		t.Errorf("ProcessedContent = %q, want %q", view.ProcessedContent, want)
	}
	// metadata is derived from the source text, not the error wrapper
	if got := backend.inputs[len(backend.inputs)-1]; got != "Hello there. General Kenobi." {
		t.Errorf("metadata input = %q", got)
	}
}

func TestDerivedOperationsSkipFailureNote(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{textErr: errors.New("quota exceeded")}
	svc, _ := newTestService(backend)
	view := ingestSample(t, svc)

	backend.mu.Lock()
	backend.text, backend.textErr = "1. Post about greetings", nil
	backend.mu.Unlock()

	if _, err := svc.GenerateIdeas(ctx, view.ID); err != nil {
		t.Fatalf("GenerateIdeas() error: %v", err)
	}
	input := backend.inputs[len(backend.inputs)-1]
	if !strings.Contains(input, "Hello there. General Kenobi.") || strings.Contains(input, "Error processing with AI") {
		t.Errorf("ideas input = %q", input)
	}

	md, err := svc.Export(ctx, view.ID, ExportMarkdown)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if string(md.Body) != "Hello there. General Kenobi." {
		t.Errorf("markdown export = %q", md.Body)
	}
}

func TestIngestRejectsEmptyInput(t *testing.T) {
	backend := &fakeBackend{text: "unused"}
	svc, _ := newTestService(backend)

	_, err := svc.Ingest(context.Background(), IngestRequest{Filename: "blank.txt", Data: []byte("  \n ")})
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("Ingest() error = %v, want ErrEmptyTranscript", err)
	}
	if backend.callCount() != 0 {
		t.Errorf("backend called %d times for empty input", backend.callCount())
	}
}

func TestFormatBlankOutputFallsBack(t *testing.T) {
	svc, _ := newTestService(&fakeBackend{text: "   "})

	got := svc.Format(context.Background(), "raw words", models.DefaultFormatting())
	want := "Error processing with AI: AI returned empty response\n\nOriginal text:\nraw words"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestRewrite(t *testing.T) {
	ctx := context.Background()

	t.Run("ConflictingLengthRejectedBeforeInvoke", func(t *testing.T) {
		backend := &fakeBackend{text: "ok"}
		svc, _ := newTestService(backend)
		view := ingestSample(t, svc)
		before := backend.callCount()

		_, err := svc.Rewrite(ctx, view.ID, models.NewRewriteConfig(models.TagShorter, models.TagLonger))
		var verr *prompt.ValidationError
		if !errors.As(err, &verr) || !errors.Is(err, prompt.ErrConflictingLength) {
			t.Fatalf("Rewrite() error = %v, want ValidationError", err)
		}
		if backend.callCount() != before {
			t.Error("backend was called for an invalid rewrite")
		}
	})

	t.Run("FailureReturnsErrorTextAndSavesNothing", func(t *testing.T) {
		backend := &fakeBackend{text: "formatted"}
		svc, store := newTestService(backend)
		view := ingestSample(t, svc)

		backend.mu.Lock()
		backend.textErr = errors.New("quota exceeded")
		backend.mu.Unlock()

		content, err := svc.Rewrite(ctx, view.ID, models.NewRewriteConfig(models.TagProfessional))
		var gerr *ai.GenerationError
		if !errors.As(err, &gerr) {
			t.Fatalf("Rewrite() error = %v, want GenerationError", err)
		}
		if content != "ERROR: quota exceeded" {
			t.Errorf("content = %q", content)
		}
		if rec, _ := store.GetRewrite(ctx, view.ID); rec != nil {
			t.Errorf("rewrite saved after failure: %+v", rec)
		}
	})

	t.Run("SuccessReplacesPreviousRewrite", func(t *testing.T) {
		backend := &fakeBackend{text: "formatted"}
		svc, store := newTestService(backend)
		view := ingestSample(t, svc)

		first := models.NewRewriteConfig(models.TagClearSimple, models.TagYouTubeScript)
		backend.text = "## Hook\nfirst version"
		content, err := svc.Rewrite(ctx, view.ID, first)
		if err != nil {
			t.Fatalf("Rewrite() error: %v", err)
		}
		if content != "### Hook\nfirst version" {
			t.Errorf("content = %q", content)
		}

		backend.text = "second version"
		if _, err := svc.Rewrite(ctx, view.ID, models.NewRewriteConfig(models.TagShorter)); err != nil {
			t.Fatalf("Rewrite() error: %v", err)
		}

		rec, err := store.GetRewrite(ctx, view.ID)
		if err != nil || rec == nil {
			t.Fatalf("GetRewrite() = %v, %v", rec, err)
		}
		if rec.Content != "second version" || rec.Options != models.NewRewriteConfig(models.TagShorter) {
			t.Errorf("rewrite = %+v", rec)
		}

		summary, _ := store.AnalyticsSummary(ctx)
		found := false
		for _, cv := range summary.PopularOptions {
			if cv.Value == "clear_simple,youtube_script" && cv.Count == 1 {
				found = true
			}
		}
		if !found {
			t.Errorf("PopularOptions = %+v", summary.PopularOptions)
		}
	})

	t.Run("MissingTranscript", func(t *testing.T) {
		svc, _ := newTestService(&fakeBackend{text: "ok"})
		if _, err := svc.Rewrite(ctx, 404, models.NewRewriteConfig()); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Rewrite() error = %v, want ErrNotFound", err)
		}
	})
}

func TestGenerateIdeas(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{text: "formatted"}
	svc, store := newTestService(backend)
	view := ingestSample(t, svc)

	backend.text = "1. Post about greetings"
	content, err := svc.GenerateIdeas(ctx, view.ID)
	if err != nil {
		t.Fatalf("GenerateIdeas() error: %v", err)
	}
	if content != "1. Post about greetings" {
		t.Errorf("content = %q", content)
	}
	if last := backend.calls[len(backend.calls)-1]; last.Temperature != ai.TemperatureIdeas {
		t.Errorf("temperature = %v, want %v", last.Temperature, ai.TemperatureIdeas)
	}

	ideas, err := svc.GetIdeas(ctx, view.ID)
	if err != nil || ideas == nil || ideas.Content != content {
		t.Fatalf("GetIdeas() = %+v, %v", ideas, err)
	}

	backend.textErr = errors.New("network unreachable")
	content, err = svc.GenerateIdeas(ctx, view.ID)
	if err == nil || content != "ERROR: network unreachable" {
		t.Errorf("GenerateIdeas() = %q, %v", content, err)
	}
	ideas, _ = store.GetPostIdeas(ctx, view.ID)
	if ideas.Content != "1. Post about greetings" {
		t.Errorf("failed generation overwrote ideas: %q", ideas.Content)
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(&fakeBackend{text: "formatted"})
	view := ingestSample(t, svc)

	if _, err := svc.GenerateIdeas(ctx, view.ID); err != nil {
		t.Fatalf("GenerateIdeas() error: %v", err)
	}
	if err := svc.Delete(ctx, view.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if _, err := svc.Get(ctx, view.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}
	if _, err := svc.GetIdeas(ctx, view.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetIdeas() after delete error = %v", err)
	}
	summary, _ := store.AnalyticsSummary(ctx)
	if len(summary.ActionCounts) != 0 {
		t.Errorf("events survived delete: %+v", summary.ActionCounts)
	}
}

func TestUpdateProcessedKeepsOriginal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&fakeBackend{text: "formatted"})
	view := ingestSample(t, svc)

	if err := svc.UpdateProcessed(ctx, view.ID, "hand edited"); err != nil {
		t.Fatalf("UpdateProcessed() error: %v", err)
	}
	got, err := svc.Get(ctx, view.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ProcessedContent != "hand edited" || got.OriginalContent != view.OriginalContent {
		t.Errorf("after edit: processed=%q original=%q", got.ProcessedContent, got.OriginalContent)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&fakeBackend{text: "### Notes\nSome **bold** text."})
	view := ingestSample(t, svc)

	md, err := svc.Export(ctx, view.ID, ExportMarkdown)
	if err != nil {
		t.Fatalf("Export(md) error: %v", err)
	}
	if md.Filename != "standup.md" || string(md.Body) != view.ProcessedContent {
		t.Errorf("markdown export = %q %q", md.Filename, md.Body)
	}

	doc, err := svc.Export(ctx, view.ID, ExportDocx)
	if err != nil {
		t.Fatalf("Export(docx) error: %v", err)
	}
	if doc.Filename != "standup.docx" {
		t.Errorf("docx filename = %q", doc.Filename)
	}
	if _, err := zip.NewReader(bytes.NewReader(doc.Body), int64(len(doc.Body))); err != nil {
		t.Errorf("docx is not a zip archive: %v", err)
	}

	if _, err := svc.Export(ctx, view.ID, "pdf"); !errors.Is(err, ErrUnsupportedExport) {
		t.Errorf("Export(pdf) error = %v", err)
	}
}

type fakeCaptions struct {
	caps *youtube.Captions
	err  error
	refs []string
}

func (f *fakeCaptions) FetchCaptions(_ context.Context, ref string) (*youtube.Captions, error) {
	f.refs = append(f.refs, ref)
	return f.caps, f.err
}

func TestImportYouTube(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(&fakeBackend{text: "formatted"})
	if _, err := svc.ImportYouTube(ctx, "dQw4w9WgXcQ", models.DefaultFormatting()); !errors.Is(err, ErrCaptionsDisabled) {
		t.Errorf("ImportYouTube() without source error = %v", err)
	}

	src := &fakeCaptions{caps: &youtube.Captions{VideoID: "dQw4w9WgXcQ", Title: "Weekly Sync", SRT: []byte(sampleSRT)}}
	svc, _ = newTestService(&fakeBackend{text: "formatted"}, WithCaptions(src))

	view, err := svc.ImportYouTube(ctx, "https://youtu.be/dQw4w9WgXcQ", models.DefaultFormatting())
	if err != nil {
		t.Fatalf("ImportYouTube() error: %v", err)
	}
	if view.SourceKind != models.SourceYouTube || view.Filename != "Weekly Sync.srt" {
		t.Errorf("imported %s as %s", view.Filename, view.SourceKind)
	}
	if !strings.Contains(view.OriginalContent, "General Kenobi.") {
		t.Errorf("OriginalContent = %q", view.OriginalContent)
	}

	src.err = youtube.ErrNoCaptions
	if _, err := svc.ImportYouTube(ctx, "dQw4w9WgXcQ", models.DefaultFormatting()); !errors.Is(err, youtube.ErrNoCaptions) {
		t.Errorf("ImportYouTube() error = %v, want ErrNoCaptions", err)
	}
}

func TestFormatWithoutHeadings(t *testing.T) {
	var system string
	backend := ai.BackendFunc(func(_ context.Context, messages []ai.Message, _ ai.Params) (string, error) {
		system = messages[0].Text
		return "# Title\nbody\n#hashtag", nil
	})
	svc := NewService(storage.NewMemory(), ai.NewInvoker(backend, time.Second))

	cfg := models.DefaultFormatting()
	cfg.Headings = false
	got := svc.Format(context.Background(), "spoken words", cfg)

	if !strings.Contains(system, "Do NOT add any headings") {
		t.Errorf("system instructions lack the negative heading line:\n%s", system)
	}
	if got != "### Title\nbody\n#hashtag" {
		t.Errorf("Format() = %q", got)
	}
}
