package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type threadRow struct {
	bun.BaseModel `bun:"table:email_threads,alias:t"`

	ThreadID        string    `bun:"thread_id,pk"`
	InfluencerName  string    `bun:"influencer_name"`
	InfluencerMail  string    `bun:"influencer_email"`
	ChannelURL      string    `bun:"channel_url"`
	Brand           string    `bun:"brand"`
	Category        string    `bun:"category"`
	Status          string    `bun:"status"`
	Messages        []Message `bun:"messages,type:jsonb"`
	LatestMessageAt time.Time `bun:"latest_message_at"`
}

type brandRow struct {
	bun.BaseModel `bun:"table:brand_profiles,alias:b"`

	BrandID        string   `bun:"brand_id,pk"`
	BrandName      string   `bun:"brand_name"`
	Description    string   `bun:"description"`
	MonthlyBudget  float64  `bun:"monthly_budget"`
	TargetAudience string   `bun:"target_audience"`
	Tone           string   `bun:"tone"`
	KeyMessages    []string `bun:"key_messages,type:jsonb"`
}

// PostgresStore keeps threads and brands in Postgres through bun. It
// implements the same ThreadStore/BrandStore contracts as FixtureStore.
type PostgresStore struct {
	db  *bun.DB
	now func() time.Time
}

// NewPostgresStore opens a bun connection over the pgdriver DSN.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contract.ErrInvalidArgument)
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &PostgresStore{db: db, now: time.Now}, nil
}

// Migrate creates the backing tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*threadRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create email_threads: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*brandRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create brand_profiles: %w", err)
	}
	return nil
}

// SeedFromFixtures copies the embedded fixtures into empty tables so a fresh
// database starts with the same demo data as the in-memory store.
func (s *PostgresStore) SeedFromFixtures(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*threadRow)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count threads: %w", err)
	}
	if count > 0 {
		return nil
	}

	fixtures, err := NewFixtureStore()
	if err != nil {
		return err
	}

	rows := make([]threadRow, 0, len(fixtures.threads))
	for _, t := range fixtures.threads {
		rows = append(rows, threadRow{
			ThreadID:        t.ThreadID,
			InfluencerName:  t.InfluencerName,
			InfluencerMail:  t.InfluencerMail,
			ChannelURL:      t.ChannelURL,
			Brand:           t.Brand,
			Category:        t.Category,
			Status:          t.Status,
			Messages:        t.Messages,
			LatestMessageAt: t.LatestTimestamp(),
		})
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("seed threads: %w", err)
	}

	brands := make([]brandRow, 0, len(fixtures.brands))
	for _, b := range fixtures.brands {
		brands = append(brands, brandRow{
			BrandID:        b.BrandID,
			BrandName:      b.BrandName,
			Description:    b.Description,
			MonthlyBudget:  b.MonthlyBudget,
			TargetAudience: b.TargetAudience,
			Tone:           b.Tone,
			KeyMessages:    b.KeyMessages,
		})
	}
	if _, err := s.db.NewInsert().Model(&brands).Exec(ctx); err != nil {
		return fmt.Errorf("seed brands: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// ListThreads returns up to limit summaries, newest activity first.
func (s *PostgresStore) ListThreads(ctx context.Context, limit int) ([]ThreadSummary, error) {
	var rows []threadRow
	q := s.db.NewSelect().Model(&rows).Order("latest_message_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	summaries := make([]ThreadSummary, 0, len(rows))
	for _, r := range rows {
		summaries = append(summaries, ThreadSummary{
			ThreadID:       r.ThreadID,
			InfluencerName: r.InfluencerName,
			Brand:          r.Brand,
			Category:       r.Category,
			Status:         r.Status,
			LatestMessage:  r.LatestMessageAt,
		})
	}
	return summaries, nil
}

// GetThread loads one full thread.
func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	row := new(threadRow)
	err := s.db.NewSelect().Model(row).Where("thread_id = ?", threadID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %q", contract.ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return row.toThread(), nil
}

// AppendReply appends a sent message to the thread's jsonb message list.
func (s *PostgresStore) AppendReply(ctx context.Context, threadID string, msg Message) error {
	row := new(threadRow)
	err := s.db.NewSelect().Model(row).Where("thread_id = ?", threadID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: thread %q", contract.ErrNotFound, threadID)
	}
	if err != nil {
		return fmt.Errorf("load thread for reply: %w", err)
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	row.Messages = append(row.Messages, msg)
	row.LatestMessageAt = msg.Timestamp

	if _, err := s.db.NewUpdate().Model(row).
		Column("messages", "latest_message_at").
		WherePK().
		Exec(ctx); err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	return nil
}

// MarkProcessed flips the thread status to processed.
func (s *PostgresStore) MarkProcessed(ctx context.Context, threadID string) error {
	res, err := s.db.NewUpdate().Model((*threadRow)(nil)).
		Set("status = ?", "processed").
		Where("thread_id = ?", threadID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: thread %q", contract.ErrNotFound, threadID)
	}
	return nil
}

// GetBrand resolves a brand profile.
func (s *PostgresStore) GetBrand(ctx context.Context, brandID string) (*Brand, error) {
	row := new(brandRow)
	err := s.db.NewSelect().Model(row).Where("brand_id = ?", brandID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: brand %q", contract.ErrNotFound, brandID)
	}
	if err != nil {
		return nil, fmt.Errorf("get brand: %w", err)
	}
	return &Brand{
		BrandID:        row.BrandID,
		BrandName:      row.BrandName,
		Description:    row.Description,
		MonthlyBudget:  row.MonthlyBudget,
		TargetAudience: row.TargetAudience,
		Tone:           row.Tone,
		KeyMessages:    row.KeyMessages,
	}, nil
}

func (r *threadRow) toThread() *Thread {
	return &Thread{
		ThreadID:       r.ThreadID,
		InfluencerName: r.InfluencerName,
		InfluencerMail: r.InfluencerMail,
		ChannelURL:     r.ChannelURL,
		Brand:          r.Brand,
		Category:       r.Category,
		Status:         r.Status,
		Messages:       r.Messages,
	}
}
