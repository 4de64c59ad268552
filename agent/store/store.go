// Package store holds the email thread and brand profile collaborators.
//
// Two implementations share one interface: FixtureStore serves embedded JSON
// fixtures and is the default, PostgresStore keeps the same data in Postgres
// via bun for deployments that want durability.
package store

import (
	"context"
	"time"
)

// Message is one email in a thread, ordered by timestamp.
type Message struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is a full email conversation with a content creator.
type Thread struct {
	ThreadID       string    `json:"thread_id"`
	InfluencerName string    `json:"influencer_name"`
	InfluencerMail string    `json:"influencer_email"`
	ChannelURL     string    `json:"channel_url"`
	Brand          string    `json:"brand"`
	Category       string    `json:"category"`
	Status         string    `json:"status"` // pending | processed
	Messages       []Message `json:"messages"`
}

// ThreadSummary is the listing view of a thread.
type ThreadSummary struct {
	ThreadID       string    `json:"thread_id"`
	InfluencerName string    `json:"influencer_name"`
	Brand          string    `json:"brand"`
	Category       string    `json:"category"`
	Status         string    `json:"status"`
	LatestMessage  time.Time `json:"latest_message_time"`
}

// Brand is the sponsoring company profile used to personalise replies.
type Brand struct {
	BrandID        string   `json:"brand_id"`
	BrandName      string   `json:"brand_name"`
	Description    string   `json:"description"`
	MonthlyBudget  float64  `json:"monthly_budget"`
	TargetAudience string   `json:"target_audience"`
	Tone           string   `json:"tone"`
	KeyMessages    []string `json:"key_messages,omitempty"`
}

// LatestTimestamp returns the timestamp of the newest message, or the zero
// time for an empty thread.
func (t *Thread) LatestTimestamp() time.Time {
	if len(t.Messages) == 0 {
		return time.Time{}
	}
	return t.Messages[len(t.Messages)-1].Timestamp
}

// Summary projects the thread onto its listing view.
func (t *Thread) Summary() ThreadSummary {
	return ThreadSummary{
		ThreadID:       t.ThreadID,
		InfluencerName: t.InfluencerName,
		Brand:          t.Brand,
		Category:       t.Category,
		Status:         t.Status,
		LatestMessage:  t.LatestTimestamp(),
	}
}

// ThreadStore is the thread collaborator contract. Lookups of unknown ids
// return contract.ErrNotFound wrapped with context, never panics.
type ThreadStore interface {
	ListThreads(ctx context.Context, limit int) ([]ThreadSummary, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	AppendReply(ctx context.Context, threadID string, msg Message) error
	MarkProcessed(ctx context.Context, threadID string) error
}

// BrandStore resolves brand profiles.
type BrandStore interface {
	GetBrand(ctx context.Context, brandID string) (*Brand, error)
}
