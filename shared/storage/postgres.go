package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"transcript-stack/internal/models"
)

// PostgresConfig holds the connection settings for the Postgres store
type PostgresConfig struct {
	DSN string

	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// Postgres is the relational Store backed by a pgx database/sql handle
type Postgres struct {
	db *sql.DB
}

const pgForeignKeyViolation = "23503"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS transcripts (
		id BIGSERIAL PRIMARY KEY,
		filename VARCHAR(255) NOT NULL,
		original_content TEXT NOT NULL,
		processed_content TEXT NOT NULL,
		format_style VARCHAR(50),
		source_kind VARCHAR(20) NOT NULL DEFAULT 'upload',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS post_ideas (
		transcript_id BIGINT PRIMARY KEY REFERENCES transcripts(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS rewrites (
		transcript_id BIGINT PRIMARY KEY REFERENCES transcripts(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		options TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS analytics (
		id UUID PRIMARY KEY,
		transcript_id BIGINT REFERENCES transcripts(id) ON DELETE CASCADE,
		action_type VARCHAR(50) NOT NULL,
		action_details JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS transcript_metadata (
		transcript_id BIGINT PRIMARY KEY REFERENCES transcripts(id) ON DELETE CASCADE,
		topics JSONB,
		keywords JSONB,
		sentiment JSONB,
		tags JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS analytics_action_type_idx ON analytics (action_type)`,
}

// NewPostgres connects, verifies the connection and creates missing tables
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres DSN is required")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdle)
	}
	if cfg.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLife)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// EnsureSchema creates all tables if they don't exist
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return tx.Commit()
}

const transcriptColumns = `id, filename, original_content, processed_content, COALESCE(format_style, ''), source_kind, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row rowScanner) (*models.Transcript, error) {
	var (
		t           models.Transcript
		style, kind string
	)
	if err := row.Scan(&t.ID, &t.Filename, &t.OriginalContent, &t.ProcessedContent, &style, &kind, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.FormatStyle = models.DocumentStyle(style)
	t.SourceKind = models.SourceKind(kind)
	return &t, nil
}

func (p *Postgres) CreateTranscript(ctx context.Context, in models.NewTranscript) (*models.Transcript, error) {
	kind := in.SourceKind
	if kind == "" {
		kind = models.SourceUpload
	}

	row := p.db.QueryRowContext(ctx,
		`INSERT INTO transcripts (filename, original_content, processed_content, format_style, source_kind)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+transcriptColumns,
		in.Filename, in.OriginalContent, in.ProcessedContent, string(in.FormatStyle), string(kind))

	t, err := scanTranscript(row)
	if err != nil {
		return nil, fmt.Errorf("insert transcript: %w", err)
	}
	return t, nil
}

func (p *Postgres) GetTranscript(ctx context.Context, id int64) (*models.Transcript, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+transcriptColumns+` FROM transcripts WHERE id = $1`, id)

	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript %d: %w", id, err)
	}
	return t, nil
}

func (p *Postgres) ListTranscripts(ctx context.Context) ([]models.Transcript, error) {
	return p.queryTranscripts(ctx, `SELECT `+transcriptColumns+` FROM transcripts ORDER BY created_at DESC, id DESC`)
}

func (p *Postgres) ListWithoutMetadata(ctx context.Context, limit int) ([]models.Transcript, error) {
	if limit <= 0 {
		limit = 1000
	}
	return p.queryTranscripts(ctx,
		`SELECT t.id, t.filename, t.original_content, t.processed_content, COALESCE(t.format_style, ''), t.source_kind, t.created_at
		 FROM transcripts t
		 LEFT JOIN transcript_metadata m ON m.transcript_id = t.id
		 WHERE m.transcript_id IS NULL
		 ORDER BY t.id ASC
		 LIMIT $1`, limit)
}

func (p *Postgres) queryTranscripts(ctx context.Context, query string, args ...any) ([]models.Transcript, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	out := []models.Transcript{}
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateProcessedContent(ctx context.Context, id int64, content string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE transcripts SET processed_content = $1 WHERE id = $2`, content, id)
	if err != nil {
		return fmt.Errorf("update transcript %d: %w", id, err)
	}
	return requireRow(res)
}

func (p *Postgres) DeleteTranscript(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM transcripts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transcript %d: %w", id, err)
	}
	return requireRow(res)
}

func (p *Postgres) SavePostIdeas(ctx context.Context, id int64, content string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO post_ideas (transcript_id, content) VALUES ($1, $2)
		 ON CONFLICT (transcript_id) DO UPDATE SET content = EXCLUDED.content, created_at = NOW()`,
		id, content)
	return wrapWriteErr("save post ideas", err)
}

func (p *Postgres) GetPostIdeas(ctx context.Context, id int64) (*models.PostIdeas, error) {
	ideas := models.PostIdeas{TranscriptID: id}
	err := p.db.QueryRowContext(ctx, `SELECT content, created_at FROM post_ideas WHERE transcript_id = $1`, id).
		Scan(&ideas.Content, &ideas.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get post ideas %d: %w", id, err)
	}
	return &ideas, nil
}

func (p *Postgres) DeletePostIdeas(ctx context.Context, id int64) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM post_ideas WHERE transcript_id = $1`, id); err != nil {
		return fmt.Errorf("delete post ideas %d: %w", id, err)
	}
	return nil
}

func (p *Postgres) SaveRewrite(ctx context.Context, id int64, content string, options models.RewriteConfig) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO rewrites (transcript_id, content, options) VALUES ($1, $2, $3)
		 ON CONFLICT (transcript_id) DO UPDATE SET content = EXCLUDED.content, options = EXCLUDED.options, created_at = NOW()`,
		id, content, options.Encode())
	return wrapWriteErr("save rewrite", err)
}

func (p *Postgres) GetRewrite(ctx context.Context, id int64) (*models.RewriteRecord, error) {
	var (
		rec     = models.RewriteRecord{TranscriptID: id}
		options sql.NullString
	)
	err := p.db.QueryRowContext(ctx, `SELECT content, options, created_at FROM rewrites WHERE transcript_id = $1`, id).
		Scan(&rec.Content, &options, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rewrite %d: %w", id, err)
	}

	rec.Options, err = models.DecodeRewriteConfig(options.String)
	if err != nil {
		return nil, fmt.Errorf("decode rewrite options for %d: %w", id, err)
	}
	return &rec, nil
}

func (p *Postgres) DeleteRewrite(ctx context.Context, id int64) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM rewrites WHERE transcript_id = $1`, id); err != nil {
		return fmt.Errorf("delete rewrite %d: %w", id, err)
	}
	return nil
}

func (p *Postgres) SaveMetadata(ctx context.Context, id int64, m models.TranscriptMetadata) error {
	m = m.Normalized()

	topics, err := json.Marshal(m.Topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	keywords, err := json.Marshal(m.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	sentiment, err := json.Marshal(m.Sentiment)
	if err != nil {
		return fmt.Errorf("encode sentiment: %w", err)
	}
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO transcript_metadata (transcript_id, topics, keywords, sentiment, tags)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (transcript_id) DO UPDATE
		 SET topics = EXCLUDED.topics, keywords = EXCLUDED.keywords, sentiment = EXCLUDED.sentiment,
		     tags = EXCLUDED.tags, created_at = NOW()`,
		id, string(topics), string(keywords), string(sentiment), string(tags))
	return wrapWriteErr("save metadata", err)
}

func (p *Postgres) GetMetadata(ctx context.Context, id int64) (*models.TranscriptMetadata, error) {
	var topics, keywords, sentiment, tags []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT topics, keywords, sentiment, tags FROM transcript_metadata WHERE transcript_id = $1`, id).
		Scan(&topics, &keywords, &sentiment, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %d: %w", id, err)
	}

	var m models.TranscriptMetadata
	if err := decodeJSONB(topics, &m.Topics); err != nil {
		return nil, fmt.Errorf("decode topics for %d: %w", id, err)
	}
	if err := decodeJSONB(keywords, &m.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords for %d: %w", id, err)
	}
	if err := decodeJSONB(sentiment, &m.Sentiment); err != nil {
		return nil, fmt.Errorf("decode sentiment for %d: %w", id, err)
	}
	if err := decodeJSONB(tags, &m.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for %d: %w", id, err)
	}

	m = m.Normalized()
	return &m, nil
}

func (p *Postgres) DeleteMetadata(ctx context.Context, id int64) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM transcript_metadata WHERE transcript_id = $1`, id); err != nil {
		return fmt.Errorf("delete metadata %d: %w", id, err)
	}
	return nil
}

func (p *Postgres) AppendEvent(ctx context.Context, e models.AnalyticsEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encode analytics details: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO analytics (id, transcript_id, action_type, action_details) VALUES ($1, $2, $3, $4)`,
		e.ID, e.TranscriptID, string(e.Action), string(details))
	return wrapWriteErr("log analytics event", err)
}

func (p *Postgres) AnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error) {
	options, err := p.countedValues(ctx,
		`SELECT action_details->>'options' AS value, COUNT(*) AS count
		 FROM analytics
		 WHERE action_type = 'rewrite' AND action_details->>'options' IS NOT NULL
		 GROUP BY value
		 ORDER BY count DESC, value ASC
		 LIMIT $1`, models.PopularOptionsLimit)
	if err != nil {
		return nil, fmt.Errorf("popular options: %w", err)
	}

	formats, err := p.countedValues(ctx,
		`SELECT action_details->>'format_style' AS value, COUNT(*) AS count
		 FROM analytics
		 WHERE action_type = 'format' AND action_details->>'format_style' IS NOT NULL
		 GROUP BY value
		 ORDER BY count DESC, value ASC`)
	if err != nil {
		return nil, fmt.Errorf("popular formats: %w", err)
	}

	actions, err := p.countedValues(ctx,
		`SELECT action_type AS value, COUNT(*) AS count
		 FROM analytics
		 GROUP BY value
		 ORDER BY count DESC, value ASC`)
	if err != nil {
		return nil, fmt.Errorf("action counts: %w", err)
	}

	return &models.AnalyticsSummary{
		PopularOptions: options,
		PopularFormats: formats,
		ActionCounts:   actions,
	}, nil
}

func (p *Postgres) countedValues(ctx context.Context, query string, args ...any) ([]models.CountedValue, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CountedValue{}
	for rows.Next() {
		var cv models.CountedValue
		if err := rows.Scan(&cv.Value, &cv.Count); err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// wrapWriteErr maps a foreign key violation on transcript_id to ErrNotFound
func wrapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// decodeJSONB leaves dst untouched for NULL columns
func decodeJSONB(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
