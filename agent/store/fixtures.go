package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
)

//go:embed data/email_fixtures.json
var emailFixturesRaw []byte

//go:embed data/brand_profiles.json
var brandProfilesRaw []byte

// FixtureStore serves the embedded demo threads and brands from memory.
// Mutations (replies, status changes) live for the process lifetime only.
type FixtureStore struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	brands  map[string]*Brand
	now     func() time.Time
}

// NewFixtureStore parses the embedded fixtures.
func NewFixtureStore() (*FixtureStore, error) {
	var threads []*Thread
	if err := json.Unmarshal(emailFixturesRaw, &threads); err != nil {
		return nil, fmt.Errorf("parse email fixtures: %w", err)
	}
	var brands []*Brand
	if err := json.Unmarshal(brandProfilesRaw, &brands); err != nil {
		return nil, fmt.Errorf("parse brand profiles: %w", err)
	}

	s := &FixtureStore{
		threads: make(map[string]*Thread, len(threads)),
		brands:  make(map[string]*Brand, len(brands)),
		now:     time.Now,
	}
	for _, t := range threads {
		s.threads[t.ThreadID] = t
	}
	for _, b := range brands {
		s.brands[b.BrandID] = b
	}
	return s, nil
}

// ListThreads returns up to limit summaries, newest activity first.
func (s *FixtureStore) ListThreads(_ context.Context, limit int) ([]ThreadSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]ThreadSummary, 0, len(s.threads))
	for _, t := range s.threads {
		summaries = append(summaries, t.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LatestMessage.After(summaries[j].LatestMessage)
	})
	if limit > 0 && limit < len(summaries) {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// GetThread returns a copy of the thread so callers cannot mutate shared
// state behind the lock.
func (s *FixtureStore) GetThread(_ context.Context, threadID string) (*Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: thread %q", contract.ErrNotFound, threadID)
	}
	cp := *t
	cp.Messages = append([]Message(nil), t.Messages...)
	return &cp, nil
}

// AppendReply appends a sent message to the thread.
func (s *FixtureStore) AppendReply(_ context.Context, threadID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("%w: thread %q", contract.ErrNotFound, threadID)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now().UTC()
	}
	t.Messages = append(t.Messages, msg)
	return nil
}

// MarkProcessed flips the thread status to processed.
func (s *FixtureStore) MarkProcessed(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		return fmt.Errorf("%w: thread %q", contract.ErrNotFound, threadID)
	}
	t.Status = "processed"
	return nil
}

// GetBrand resolves a brand profile.
func (s *FixtureStore) GetBrand(_ context.Context, brandID string) (*Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.brands[brandID]
	if !ok {
		return nil, fmt.Errorf("%w: brand %q", contract.ErrNotFound, brandID)
	}
	cp := *b
	return &cp, nil
}
