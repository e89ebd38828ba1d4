package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"transcript-stack/internal/models"
)

// Memory is an in-process Store, used when no database is configured and in tests
type Memory struct {
	mu sync.RWMutex

	nextID      int64
	transcripts map[int64]models.Transcript
	ideas       map[int64]models.PostIdeas
	rewrites    map[int64]models.RewriteRecord
	metadata    map[int64]models.TranscriptMetadata
	events      []models.AnalyticsEvent

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		transcripts: make(map[int64]models.Transcript),
		ideas:       make(map[int64]models.PostIdeas),
		rewrites:    make(map[int64]models.RewriteRecord),
		metadata:    make(map[int64]models.TranscriptMetadata),
		now:         time.Now,
	}
}

func (m *Memory) CreateTranscript(_ context.Context, in models.NewTranscript) (*models.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	t := models.Transcript{
		ID:               m.nextID,
		Filename:         in.Filename,
		OriginalContent:  in.OriginalContent,
		ProcessedContent: in.ProcessedContent,
		FormatStyle:      in.FormatStyle,
		SourceKind:       in.SourceKind,
		CreatedAt:        m.now(),
	}
	m.transcripts[t.ID] = t
	return &t, nil
}

func (m *Memory) GetTranscript(_ context.Context, id int64) (*models.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transcripts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *Memory) ListTranscripts(_ context.Context) ([]models.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Transcript, 0, len(m.transcripts))
	for _, t := range m.transcripts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) ListWithoutMetadata(_ context.Context, limit int) ([]models.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Transcript
	for _, t := range m.transcripts {
		if _, ok := m.metadata[t.ID]; !ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateProcessedContent(_ context.Context, id int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transcripts[id]
	if !ok {
		return ErrNotFound
	}
	t.ProcessedContent = content
	m.transcripts[id] = t
	return nil
}

func (m *Memory) DeleteTranscript(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transcripts[id]; !ok {
		return ErrNotFound
	}
	delete(m.transcripts, id)
	delete(m.ideas, id)
	delete(m.rewrites, id)
	delete(m.metadata, id)

	kept := m.events[:0]
	for _, e := range m.events {
		if e.TranscriptID != id {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

func (m *Memory) SavePostIdeas(_ context.Context, id int64, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transcripts[id]; !ok {
		return ErrNotFound
	}
	m.ideas[id] = models.PostIdeas{TranscriptID: id, Content: content, CreatedAt: m.now()}
	return nil
}

func (m *Memory) GetPostIdeas(_ context.Context, id int64) (*models.PostIdeas, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.ideas[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) DeletePostIdeas(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ideas, id)
	return nil
}

func (m *Memory) SaveRewrite(_ context.Context, id int64, content string, options models.RewriteConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transcripts[id]; !ok {
		return ErrNotFound
	}
	m.rewrites[id] = models.RewriteRecord{TranscriptID: id, Content: content, Options: options, CreatedAt: m.now()}
	return nil
}

func (m *Memory) GetRewrite(_ context.Context, id int64) (*models.RewriteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rewrites[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) DeleteRewrite(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rewrites, id)
	return nil
}

func (m *Memory) SaveMetadata(_ context.Context, id int64, md models.TranscriptMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transcripts[id]; !ok {
		return ErrNotFound
	}
	md = md.Normalized()
	// copy the lists so later caller mutations do not leak in
	md.Topics = append([]string{}, md.Topics...)
	md.Keywords = append([]string{}, md.Keywords...)
	md.Tags = append([]string{}, md.Tags...)
	m.metadata[id] = md
	return nil
}

func (m *Memory) GetMetadata(_ context.Context, id int64) (*models.TranscriptMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	md, ok := m.metadata[id]
	if !ok {
		return nil, nil
	}
	md.Topics = append([]string{}, md.Topics...)
	md.Keywords = append([]string{}, md.Keywords...)
	md.Tags = append([]string{}, md.Tags...)
	return &md, nil
}

func (m *Memory) DeleteMetadata(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.metadata, id)
	return nil
}

func (m *Memory) AppendEvent(_ context.Context, e models.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transcripts[e.TranscriptID]; !ok {
		return ErrNotFound
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) AnalyticsSummary(_ context.Context) (*models.AnalyticsSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	options := make(map[string]int)
	formats := make(map[string]int)
	actions := make(map[string]int)

	for _, e := range m.events {
		actions[string(e.Action)]++
		switch e.Action {
		case models.ActionRewrite:
			if v, ok := e.Details[DetailOptions].(string); ok {
				options[v]++
			}
		case models.ActionFormat:
			if v, ok := e.Details[DetailFormatStyle].(string); ok {
				formats[v]++
			}
		}
	}

	return &models.AnalyticsSummary{
		PopularOptions: rankCounts(options, models.PopularOptionsLimit),
		PopularFormats: rankCounts(formats, 0),
		ActionCounts:   rankCounts(actions, 0),
	}, nil
}

// rankCounts orders by count descending, then value; limit 0 keeps everything
func rankCounts(counts map[string]int, limit int) []models.CountedValue {
	out := make([]models.CountedValue, 0, len(counts))
	for v, c := range counts {
		out = append(out, models.CountedValue{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *Memory) Close() error { return nil }
