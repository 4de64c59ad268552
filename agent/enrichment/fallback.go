package enrichment

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed data/channel_profiles.json
var channelProfilesRaw []byte

// fallbackProfile is one row of the embedded static dataset.
type fallbackProfile struct {
	ChannelRef     string  `json:"channel_ref"`
	ChannelName    string  `json:"channel_name"`
	ChannelURL     string  `json:"channel_url"`
	Subscribers    int64   `json:"subscribers"`
	AvgViews       float64 `json:"avg_views"`
	EngagementRate float64 `json:"engagement_rate"`
	Niche          string  `json:"niche"`
	Consistency    string  `json:"consistency"`
}

// FallbackDataset is the local static dataset used when the live provider is
// unavailable or unconfigured. Read-only after construction.
type FallbackDataset struct {
	profiles []fallbackProfile
}

// LoadFallbackDataset parses the embedded profile fixtures.
func LoadFallbackDataset() (*FallbackDataset, error) {
	var profiles []fallbackProfile
	if err := json.Unmarshal(channelProfilesRaw, &profiles); err != nil {
		return nil, fmt.Errorf("parse embedded channel profiles: %w", err)
	}
	return &FallbackDataset{profiles: profiles}, nil
}

// Lookup finds a profile by channel reference: exact ref, exact URL, or
// handle extracted from either side. Matching is case-insensitive.
func (d *FallbackDataset) Lookup(channelRef string) (ChannelMetrics, bool) {
	wantHandle := strings.ToLower(ExtractHandle(channelRef))
	for _, p := range d.profiles {
		switch {
		case strings.EqualFold(p.ChannelRef, channelRef),
			strings.EqualFold(p.ChannelURL, channelRef),
			wantHandle != "" && strings.EqualFold(ExtractHandle(p.ChannelRef), wantHandle),
			wantHandle != "" && strings.EqualFold(ExtractHandle(p.ChannelURL), wantHandle):
			return ChannelMetrics{
				ChannelRef:     channelRef,
				ChannelName:    p.ChannelName,
				Subscribers:    p.Subscribers,
				AvgViews:       p.AvgViews,
				EngagementRate: p.EngagementRate,
				Niche:          p.Niche,
				Consistency:    p.Consistency,
				Source:         SourceFallback,
			}, true
		}
	}
	return ChannelMetrics{}, false
}

// ExtractHandle pulls an @handle out of a channel URL or reference.
// "https://www.youtube.com/@Name/videos" becomes "@Name"; inputs without a
// handle are returned unchanged.
func ExtractHandle(ref string) string {
	if i := strings.Index(ref, "@"); i >= 0 {
		handle := ref[i:]
		if j := strings.IndexAny(handle[1:], "/?"); j >= 0 {
			handle = handle[:j+1]
		}
		return handle
	}
	return ref
}
