package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"InfoDigest/internal/config"
	"InfoDigest/internal/domain"
	"InfoDigest/internal/ports"
)

const (
	// DefaultListLimit applies when a filter leaves Limit unset.
	DefaultListLimit = 50
	// MaxListLimit caps a single ListRecent page.
	MaxListLimit = 500

	digestsTable = "digests"
)

var digestColumns = []string{
	"source_url", "content_type", "extracted_text", "title", "summary", "key_points",
	"insight", "status", "failure_reason", "error_message", "requested_by",
	"user_comment", "processing_ms", "created_at",
}

const upsertSuffix = `ON CONFLICT (source_url) DO UPDATE SET
	content_type = excluded.content_type,
	extracted_text = excluded.extracted_text,
	title = excluded.title,
	summary = excluded.summary,
	key_points = excluded.key_points,
	insight = excluded.insight,
	status = excluded.status,
	failure_reason = excluded.failure_reason,
	error_message = excluded.error_message,
	requested_by = excluded.requested_by,
	user_comment = excluded.user_comment,
	processing_ms = excluded.processing_ms,
	created_at = excluded.created_at`

// SQLRepository persists digest records in SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	ttl     time.Duration
	now     func() time.Time
}

var (
	_ ports.DigestStore  = (*SQLRepository)(nil)
	_ ports.DigestReader = (*SQLRepository)(nil)
)

// RepositoryOption customizes a repository.
type RepositoryOption func(*SQLRepository)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *SQLRepository) { r.now = now }
}

// NewSQLRepository wires a sql.DB for the given driver. A zero ttl keeps
// records valid forever.
func NewSQLRepository(db *sql.DB, driver string, ttl time.Duration, opts ...RepositoryOption) *SQLRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == config.DriverPostgres {
		placeholder = sq.Dollar
	}
	repo := &SQLRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// TTL reports how long a record stays valid.
func (r *SQLRepository) TTL() time.Duration { return r.ttl }

// Save inserts or replaces the record for its source URL in one statement.
func (r *SQLRepository) Save(ctx context.Context, record domain.DigestRecord) error {
	if record.SourceURL == "" {
		return errors.New("save digest: empty source url")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	keyPoints, err := json.Marshal(nonNil(record.KeyPoints))
	if err != nil {
		return fmt.Errorf("encode key points: %w", err)
	}

	query, args, err := r.builder.
		Insert(digestsTable).
		Columns(digestColumns...).
		Values(
			record.SourceURL,
			string(record.ContentType),
			record.ExtractedText,
			record.Title,
			record.Summary,
			string(keyPoints),
			record.Insight,
			string(record.Status),
			string(record.FailureReason),
			record.ErrorMessage,
			record.RequestedBy,
			record.UserComment,
			record.ProcessingMS,
			record.CreatedAt.UnixNano(),
		).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert digest: %w", err)
	}
	return nil
}

// FindByURL returns the record for sourceURL unless it is missing or older
// than the TTL, in which case domain.ErrNotFound is returned.
func (r *SQLRepository) FindByURL(ctx context.Context, sourceURL string) (domain.DigestRecord, error) {
	where := sq.And{sq.Eq{"source_url": sourceURL}}
	if r.ttl > 0 {
		where = append(where, sq.GtOrEq{"created_at": r.now().Add(-r.ttl).UnixNano()})
	}

	records, err := r.query(ctx, r.builder.Select(digestColumns...).From(digestsTable).Where(where).Limit(1))
	if err != nil {
		return domain.DigestRecord{}, fmt.Errorf("find digest: %w", err)
	}
	if len(records) == 0 {
		return domain.DigestRecord{}, domain.ErrNotFound
	}
	return records[0], nil
}

// ListRecent returns records matching filter, newest first.
func (r *SQLRepository) ListRecent(ctx context.Context, filter domain.Filter) ([]domain.DigestRecord, error) {
	where := sq.And{}
	if filter.ContentType != "" {
		where = append(where, sq.Eq{"content_type": string(filter.ContentType)})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": string(filter.Status)})
	}
	if !filter.Since.IsZero() {
		where = append(where, sq.GtOrEq{"created_at": filter.Since.UnixNano()})
	}
	if !filter.Until.IsZero() {
		where = append(where, sq.Lt{"created_at": filter.Until.UnixNano()})
	}

	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	builder := r.builder.
		Select(digestColumns...).
		From(digestsTable).
		OrderBy("created_at DESC", "source_url ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if len(where) > 0 {
		builder = builder.Where(where)
	}

	records, err := r.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list digests: %w", err)
	}
	return records, nil
}

func (r *SQLRepository) query(ctx context.Context, builder sq.SelectBuilder) ([]domain.DigestRecord, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var records []domain.DigestRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		records = append(records, record)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return records, nil
}

func scanRecord(rows *sql.Rows) (domain.DigestRecord, error) {
	var (
		record                               domain.DigestRecord
		contentType, status, reason, keyJSON string
		createdAt                            int64
	)
	err := rows.Scan(
		&record.SourceURL,
		&contentType,
		&record.ExtractedText,
		&record.Title,
		&record.Summary,
		&keyJSON,
		&record.Insight,
		&status,
		&reason,
		&record.ErrorMessage,
		&record.RequestedBy,
		&record.UserComment,
		&record.ProcessingMS,
		&createdAt,
	)
	if err != nil {
		return domain.DigestRecord{}, fmt.Errorf("scan digest: %w", err)
	}

	if keyJSON != "" {
		if err := json.Unmarshal([]byte(keyJSON), &record.KeyPoints); err != nil {
			return domain.DigestRecord{}, fmt.Errorf("decode key points for %s: %w", record.SourceURL, err)
		}
	}
	record.ContentType = domain.ContentType(contentType)
	record.Status = domain.Status(status)
	record.FailureReason = domain.FailureReason(reason)
	record.CreatedAt = time.Unix(0, createdAt).UTC()
	return record, nil
}

func nonNil(points []string) []string {
	if points == nil {
		return []string{}
	}
	return points
}
