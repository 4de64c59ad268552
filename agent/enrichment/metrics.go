package enrichment

import "time"

// Source tags where a ChannelMetrics value came from.
type Source string

const (
	// SourceProvider means a complete, validated response from the live
	// provider was obtained.
	SourceProvider Source = "provider"
	// SourceFallback means the value came from the embedded static dataset.
	SourceFallback Source = "fallback"
)

// ChannelMetrics is an immutable snapshot of a creator channel's audience
// numbers. Zero-valued metrics with Unresolved set mean the channel could not
// be found anywhere; downstream pricing short-circuits on it instead of
// working with garbage.
type ChannelMetrics struct {
	ChannelRef     string    `json:"channel_ref"`
	ChannelName    string    `json:"channel_name,omitempty"`
	Subscribers    int64     `json:"subscribers"`
	AvgViews       float64   `json:"avg_views"`
	EngagementRate float64   `json:"engagement_rate"`
	Niche          string    `json:"niche,omitempty"`
	Consistency    string    `json:"consistency"` // high | medium | low
	Source         Source    `json:"source"`
	Unresolved     bool      `json:"unresolved,omitempty"`
	FetchedAt      time.Time `json:"fetched_at"`
}
