package enrichment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProvider struct {
	calls   atomic.Int64
	metrics ChannelMetrics
	err     error
	panics  bool
}

func (f *fakeProvider) Fetch(ctx context.Context, channelRef string) (ChannelMetrics, error) {
	f.calls.Add(1)
	if f.panics {
		panic("provider exploded")
	}
	if f.err != nil {
		return ChannelMetrics{}, f.err
	}
	m := f.metrics
	m.ChannelRef = channelRef
	return m, nil
}

func mustDataset(t *testing.T) *FallbackDataset {
	t.Helper()
	ds, err := LoadFallbackDataset()
	if err != nil {
		t.Fatalf("load fallback dataset: %v", err)
	}
	return ds
}

func TestFetchProviderSuccess(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{metrics: ChannelMetrics{
		ChannelName:    "TechFlow Daily",
		Subscribers:    260_000,
		AvgViews:       90_000,
		EngagementRate: 0.14,
		Niche:          "tech",
		Consistency:    "high",
	}}
	g := NewGateway(mustDataset(t), WithProvider(provider))

	m := g.Fetch(context.Background(), "@TechFlowDaily")
	if m.Source != SourceProvider {
		t.Fatalf("source: got %s, want provider", m.Source)
	}
	if m.Unresolved {
		t.Fatal("resolved channel must not be flagged unresolved")
	}
	if m.Subscribers != 260_000 {
		t.Fatalf("subscribers: got %d", m.Subscribers)
	}
	if m.FetchedAt.IsZero() {
		t.Fatal("fetched_at must be stamped")
	}
}

func TestFetchProviderFailureFallsBack(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("quota exceeded")}
	g := NewGateway(mustDataset(t), WithProvider(provider))

	m := g.Fetch(context.Background(), "@FinanceWithVera")
	if m.Source != SourceFallback {
		t.Fatalf("source: got %s, want fallback", m.Source)
	}
	// The value must match the static dataset exactly.
	if m.Subscribers != 620_000 || m.AvgViews != 140_000 || m.EngagementRate != 0.18 {
		t.Fatalf("fallback metrics diverge from static dataset: %+v", m)
	}
	if m.Niche != "finance" || m.Consistency != "high" {
		t.Fatalf("fallback labels diverge from static dataset: %+v", m)
	}
}

func TestFetchProviderPanicFallsBack(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{panics: true}
	g := NewGateway(mustDataset(t), WithProvider(provider))

	m := g.Fetch(context.Background(), "@PixelForgeGaming")
	if m.Source != SourceFallback {
		t.Fatalf("source: got %s, want fallback", m.Source)
	}
}

func TestFetchUnknownChannelReturnsUnresolvedSentinel(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("not found")}
	g := NewGateway(mustDataset(t), WithProvider(provider))

	m := g.Fetch(context.Background(), "@NoSuchChannelAnywhere")
	if !m.Unresolved {
		t.Fatal("expected unresolved sentinel")
	}
	if m.Subscribers != 0 || m.AvgViews != 0 || m.EngagementRate != 0 {
		t.Fatalf("unresolved sentinel must carry zeroed metrics: %+v", m)
	}
}

func TestFetchWithoutCredentialSkipsProvider(t *testing.T) {
	t.Parallel()

	g := NewGateway(mustDataset(t)) // no provider wired

	m := g.Fetch(context.Background(), "https://www.youtube.com/@TheMarketingLoop")
	if m.Source != SourceFallback {
		t.Fatalf("source: got %s, want fallback", m.Source)
	}
	if m.Subscribers != 42_000 {
		t.Fatalf("subscribers: got %d, want 42000", m.Subscribers)
	}
}

func TestFetchCachesWithinValidityWindow(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{metrics: ChannelMetrics{
		Subscribers:    260_000,
		AvgViews:       90_000,
		EngagementRate: 0.14,
		Consistency:    "high",
	}}
	g := NewGateway(mustDataset(t), WithProvider(provider))

	first := g.Fetch(context.Background(), "@TechFlowDaily")
	second := g.Fetch(context.Background(), "@TechFlowDaily")

	if got := provider.calls.Load(); got != 1 {
		t.Fatalf("provider calls: got %d, want 1", got)
	}
	if first.Source != second.Source {
		t.Fatalf("source changed across cached reads: %s vs %s", first.Source, second.Source)
	}
	if first.Subscribers != second.Subscribers || first.FetchedAt != second.FetchedAt {
		t.Fatal("cached read must return the original value")
	}
}

func TestFetchProviderOverlaysEngagementFromDataset(t *testing.T) {
	t.Parallel()

	// Provider knows subscriber counts but not engagement.
	provider := &fakeProvider{metrics: ChannelMetrics{
		Subscribers: 95_000,
		AvgViews:    33_000,
	}}
	g := NewGateway(mustDataset(t), WithProvider(provider))

	m := g.Fetch(context.Background(), "@PixelForgeGaming")
	if m.Source != SourceProvider {
		t.Fatalf("source: got %s, want provider", m.Source)
	}
	if m.EngagementRate != 0.22 {
		t.Fatalf("engagement overlay: got %v, want 0.22 from dataset", m.EngagementRate)
	}
	if m.Consistency != "medium" {
		t.Fatalf("consistency overlay: got %q, want medium", m.Consistency)
	}
}

func TestCacheExpiryAndEviction(t *testing.T) {
	t.Parallel()

	c := newMetricsCache(2)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	c.Put("a", ChannelMetrics{ChannelRef: "a"}, time.Hour)
	c.Put("b", ChannelMetrics{ChannelRef: "b"}, time.Hour)
	c.Put("c", ChannelMetrics{ChannelRef: "c"}, time.Hour) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Fatal("least recently used entry should have been evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("entry b should survive")
	}

	now = base.Add(2 * time.Hour)
	if _, ok := c.Get("b"); ok {
		t.Fatal("expired entry must not be served")
	}
}

func TestExtractHandle(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://www.youtube.com/@TechFlowDaily":        "@TechFlowDaily",
		"https://www.youtube.com/@TechFlowDaily/videos": "@TechFlowDaily",
		"@TechFlowDaily":           "@TechFlowDaily",
		"UCabc123":                 "UCabc123",
		"youtube.com/@Name?tab=hd": "@Name",
	}
	for in, want := range cases {
		if got := ExtractHandle(in); got != want {
			t.Errorf("ExtractHandle(%q): got %q, want %q", in, got, want)
		}
	}
}
