package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"transcript-stack/internal/models"
	"transcript-stack/shared/ai"
	"transcript-stack/shared/config"
	"transcript-stack/shared/email"
	"transcript-stack/shared/scheduler"
	"transcript-stack/shared/storage"
)

// DigestMetrics describes one digest run
type DigestMetrics struct {
	Transcripts    int
	New            int
	Backfilled     int
	BackfillFailed int
	Emailed        bool
}

func (m DigestMetrics) GetSummary() string {
	s := fmt.Sprintf("%d transcripts (%d new), backfilled metadata for %d", m.Transcripts, m.New, m.Backfilled)
	if m.BackfillFailed > 0 {
		s += fmt.Sprintf(" (%d failed)", m.BackfillFailed)
	}
	if m.Emailed {
		s += ", digest emailed"
	}
	return s
}

type digestSender interface {
	SendDigest(report *models.DigestReport) error
}

// Agent backfills missing transcript metadata and mails a usage digest.
// It implements scheduler.Agent.
type Agent struct {
	config   *config.Config
	store    storage.Store
	analyzer *ai.MetadataAnalyzer
	sender   digestSender

	// pause between metadata calls
	pause   time.Duration
	lastRun time.Time
	now     func() time.Time
}

func NewAgent(cfg *config.Config) *Agent {
	return &Agent{
		config: cfg,
		pause:  time.Second,
		now:    time.Now,
	}
}

func (a *Agent) Name() string {
	return "Transcript Digest"
}

func (a *Agent) Initialize() error {
	log.Printf("Initializing %s...", a.Name())
	ctx := context.Background()

	if a.store == nil {
		if a.config.Storage.Driver == config.DriverMemory {
			log.Println("Warning: the digest agent shares nothing with the API when using in-memory storage")
		}
		store, err := storage.Open(ctx, &a.config.Storage)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		a.store = store
		log.Println("Storage initialized")
	}

	if a.analyzer == nil {
		invoker, err := ai.Open(ctx, &a.config.AI)
		if err != nil {
			return fmt.Errorf("failed to create AI client: %w", err)
		}
		a.analyzer = ai.NewMetadataAnalyzer(invoker)
		log.Println("Metadata analyzer initialized")
	}

	if a.sender == nil && a.config.Email.Enabled {
		a.sender = email.NewSender(&a.config.Email)
		log.Println("Email sender initialized")
	}

	return nil
}

func (a *Agent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := a.now()
	since := a.lastRun
	if since.IsZero() {
		since = startTime.Add(-24 * time.Hour)
	}

	var metrics DigestMetrics

	pending, err := a.store.ListWithoutMetadata(ctx, a.config.Digest.BackfillLimit)
	if err != nil {
		return fmt.Errorf("failed to list transcripts without metadata: %w", err)
	}
	if len(pending) > 0 {
		log.Printf("Backfilling metadata for %d transcripts", len(pending))
	}

	for i, t := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("Analyzing transcript %d/%d: %s", i+1, len(pending), t.Filename)

		md := a.analyzer.Analyze(ctx, transcriptText(t))
		if err := a.store.SaveMetadata(ctx, t.ID, md); err != nil {
			log.Printf("Warning: Failed to save metadata for transcript %d: %v", t.ID, err)
			metrics.BackfillFailed++
			continue
		}
		metrics.Backfilled++

		if a.pause > 0 && i < len(pending)-1 {
			select {
			case <-time.After(a.pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	all, err := a.store.ListTranscripts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list transcripts: %w", err)
	}
	var fresh []models.Transcript
	for _, t := range all {
		if t.CreatedAt.After(since) {
			fresh = append(fresh, t)
		}
	}
	metrics.Transcripts = len(all)
	metrics.New = len(fresh)

	summary, err := a.store.AnalyticsSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to build analytics summary: %w", err)
	}

	if a.sender != nil && (len(fresh) > 0 || metrics.Backfilled > 0) {
		report := &models.DigestReport{
			Date:             startTime,
			TotalTranscripts: len(all),
			NewTranscripts:   fresh,
			Backfilled:       metrics.Backfilled,
			BackfillFailed:   metrics.BackfillFailed,
			Summary:          *summary,
		}
		log.Printf("Sending digest with %d new transcripts", len(fresh))
		if err := a.sender.SendDigest(report); err != nil {
			return fmt.Errorf("failed to send digest: %w", err)
		}
		metrics.Emailed = true
	} else if a.sender != nil {
		log.Println("Nothing new since the last digest, skipping email")
	}

	duration := a.now().Sub(startTime)
	if metrics.BackfillFailed > 0 {
		events.OnPartialFailure(fmt.Errorf("metadata backfill failed for %d transcripts", metrics.BackfillFailed), duration)
	}
	events.OnSuccess(metrics, duration)

	a.lastRun = startTime
	return nil
}

func transcriptText(t models.Transcript) string {
	if strings.TrimSpace(t.ProcessedContent) != "" {
		return t.ProcessedContent
	}
	return t.OriginalContent
}
