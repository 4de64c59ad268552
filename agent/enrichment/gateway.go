// Package enrichment resolves creator channel references into audience
// metrics.
//
// The gateway degrades instead of failing: live provider first, embedded
// static dataset second, and a zeroed unresolved sentinel last. Every result
// carries its source so callers can make policy decisions about
// fallback-sourced data without reading logs.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultProviderTTL is how long a validated provider response stays
	// cached.
	DefaultProviderTTL = 24 * time.Hour
	// fallbackTTL keeps fallback-sourced entries distinguishable and short
	// lived so a recovered provider takes over quickly.
	fallbackTTL = time.Hour
)

// Gateway fetches channel metrics with caching and hybrid fallback. The
// cache is shared mutable state; concurrent fetches of the same channel are
// collapsed per key so one slow provider call never fans out.
type Gateway struct {
	provider    Provider // nil when no credential is configured
	fallback    *FallbackDataset
	cache       *metricsCache
	providerTTL time.Duration
	group       singleflight.Group
	logger      zerolog.Logger
	now         func() time.Time
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithProvider wires a live provider. Without one the gateway serves the
// static dataset only.
func WithProvider(p Provider) GatewayOption {
	return func(g *Gateway) { g.provider = p }
}

// WithProviderTTL overrides the cache validity window for provider-sourced
// entries.
func WithProviderTTL(ttl time.Duration) GatewayOption {
	return func(g *Gateway) {
		if ttl > 0 {
			g.providerTTL = ttl
		}
	}
}

// WithCacheCapacity bounds the metrics cache.
func WithCacheCapacity(n int) GatewayOption {
	return func(g *Gateway) { g.cache = newMetricsCache(n) }
}

// NewGateway builds a Gateway over the given static dataset.
func NewGateway(fallback *FallbackDataset, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		fallback:    fallback,
		cache:       newMetricsCache(256),
		providerTTL: DefaultProviderTTL,
		logger:      log.With().Str("component", "enrichment").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fetch resolves channelRef into metrics. It never returns an error: every
// internal failure degrades to the next data source, and a channel found
// nowhere yields an unresolved sentinel with zeroed metrics.
func (g *Gateway) Fetch(ctx context.Context, channelRef string) ChannelMetrics {
	if cached, ok := g.cache.Get(channelRef); ok {
		return cached
	}

	v, _, _ := g.group.Do(channelRef, func() (any, error) {
		return g.fetchUncached(ctx, channelRef), nil
	})
	return v.(ChannelMetrics)
}

func (g *Gateway) fetchUncached(ctx context.Context, channelRef string) ChannelMetrics {
	// Re-check under the flight: a concurrent caller may have filled the
	// cache while this one was queued.
	if cached, ok := g.cache.Get(channelRef); ok {
		return cached
	}

	if g.provider != nil {
		m, err := g.fetchFromProvider(ctx, channelRef)
		if err == nil {
			g.cache.Put(channelRef, m, g.providerTTL)
			return m
		}
		g.logger.Warn().Err(err).Str("channel", channelRef).
			Msg("provider fetch failed, falling back to static dataset")
	}

	if m, ok := g.fallback.Lookup(channelRef); ok {
		m.FetchedAt = g.now().UTC()
		g.cache.Put(channelRef, m, fallbackTTL)
		return m
	}

	g.logger.Warn().Str("channel", channelRef).
		Msg("channel unknown to provider and static dataset")
	return ChannelMetrics{
		ChannelRef: channelRef,
		Source:     SourceFallback,
		Unresolved: true,
		FetchedAt:  g.now().UTC(),
	}
}

// fetchFromProvider performs the bounded provider call, recovering from
// panics so a misbehaving client library degrades like any other failure,
// and overlays engagement numbers from the static dataset when the provider
// cannot supply them.
func (g *Gateway) fetchFromProvider(ctx context.Context, channelRef string) (m ChannelMetrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: provider panicked: %v", contract.ErrUpstreamUnavailable, r)
		}
	}()

	m, err = g.provider.Fetch(ctx, channelRef)
	if err != nil {
		return ChannelMetrics{}, err
	}

	if local, ok := g.fallback.Lookup(channelRef); ok {
		if m.EngagementRate == 0 {
			m.EngagementRate = local.EngagementRate
		}
		if m.AvgViews == 0 {
			m.AvgViews = local.AvgViews
		}
		if m.Niche == "" {
			m.Niche = local.Niche
		}
		m.Consistency = local.Consistency
	}
	if m.EngagementRate == 0 {
		m.EngagementRate = 0.05 // conservative estimate when nothing better exists
	}
	m.Source = SourceProvider
	m.FetchedAt = g.now().UTC()
	return m, nil
}
