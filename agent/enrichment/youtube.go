package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Provider fetches live channel statistics from an external data source.
// Implementations must respect ctx cancellation; the gateway bounds every
// call with a timeout.
type Provider interface {
	Fetch(ctx context.Context, channelRef string) (ChannelMetrics, error)
}

// YouTubeProvider resolves channel references through the YouTube Data API
// v3: handles go through search first, raw channel IDs straight to the
// channels endpoint.
type YouTubeProvider struct {
	svc     *youtube.Service
	timeout time.Duration
}

// NewYouTubeProvider builds an API-key authenticated provider. apiKey must be
// non-empty; callers without a credential skip the provider entirely.
func NewYouTubeProvider(ctx context.Context, apiKey string, timeout time.Duration) (*YouTubeProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: youtube api key is required", contract.ErrInvalidArgument)
	}
	svc, err := youtube.NewService(ctx, option.WithAPIKey(strings.TrimSpace(apiKey)))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &YouTubeProvider{svc: svc, timeout: timeout}, nil
}

// Fetch looks up the channel and maps its statistics onto ChannelMetrics.
// The API does not report per-video interactions, so the engagement rate is
// left at zero and the average views are estimated from lifetime totals; the
// gateway overlays better numbers from the static dataset when it has them.
func (p *YouTubeProvider) Fetch(ctx context.Context, channelRef string) (ChannelMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	channelID := ExtractHandle(channelRef)
	if strings.HasPrefix(channelID, "@") {
		id, err := p.resolveHandle(ctx, channelID)
		if err != nil {
			return ChannelMetrics{}, err
		}
		channelID = id
	}

	resp, err := p.svc.Channels.List([]string{"statistics", "snippet"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return ChannelMetrics{}, fmt.Errorf("%w: youtube channels.list: %v", contract.ErrUpstreamUnavailable, err)
	}
	if len(resp.Items) == 0 {
		return ChannelMetrics{}, fmt.Errorf("%w: channel %q", contract.ErrNotFound, channelRef)
	}

	item := resp.Items[0]
	stats := item.Statistics
	if stats == nil || stats.SubscriberCount == 0 {
		return ChannelMetrics{}, fmt.Errorf("%w: channel %q returned no usable statistics", contract.ErrUpstreamUnavailable, channelRef)
	}

	var avgViews float64
	if stats.VideoCount > 0 {
		avgViews = float64(stats.ViewCount) / float64(stats.VideoCount)
	}

	var title, description string
	if item.Snippet != nil {
		title = item.Snippet.Title
		description = item.Snippet.Description
	}

	return ChannelMetrics{
		ChannelRef:  channelRef,
		ChannelName: title,
		Subscribers: int64(stats.SubscriberCount),
		AvgViews:    avgViews,
		Niche:       inferNiche(title + " " + description),
		Consistency: "medium",
		Source:      SourceProvider,
	}, nil
}

func (p *YouTubeProvider) resolveHandle(ctx context.Context, handle string) (string, error) {
	resp, err := p.svc.Search.List([]string{"snippet"}).
		Q(handle).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("%w: youtube search.list: %v", contract.ErrUpstreamUnavailable, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.ChannelId == "" {
		return "", fmt.Errorf("%w: handle %q", contract.ErrNotFound, handle)
	}
	return resp.Items[0].Id.ChannelId, nil
}

// inferNiche labels a channel from its title and description. The labels
// line up with the pricing niche table; anything unrecognised stays empty
// and prices at the default multiplier.
func inferNiche(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "finance") || strings.Contains(t, "invest") || strings.Contains(t, "money"):
		return "finance"
	case strings.Contains(t, "tech") || strings.Contains(t, " ai") || strings.Contains(t, "software"):
		return "tech"
	case strings.Contains(t, "business") || strings.Contains(t, "entrepreneur"):
		return "business"
	case strings.Contains(t, "marketing"):
		return "marketing"
	case strings.Contains(t, "gaming") || strings.Contains(t, "game"):
		return "gaming"
	case strings.Contains(t, "lifestyle") || strings.Contains(t, "vlog"):
		return "lifestyle"
	default:
		return ""
	}
}
