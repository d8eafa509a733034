package policy

import (
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/internal/entity"
)

// Channel is an independent notification transport.
type Channel string

// Supported delivery channels.
const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelChat  Channel = "chat"
)

// Valid reports whether the channel is one of the known values.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelChat:
		return true
	}
	return false
}

// ImpactFilter is a coarse severity gate applied independently of lead
// windows.
type ImpactFilter string

// Impact filter values.
const (
	FilterAll           ImpactFilter = "all"
	FilterHighOnly      ImpactFilter = "high_only"
	FilterHighAndMedium ImpactFilter = "high_and_medium"
)

// Valid reports whether the filter is one of the known values.
func (f ImpactFilter) Valid() bool {
	switch f {
	case FilterAll, FilterHighOnly, FilterHighAndMedium:
		return true
	}
	return false
}

// Admits reports whether an event of the given impact passes the filter.
func (f ImpactFilter) Admits(impact event.Impact) bool {
	switch f {
	case FilterHighOnly:
		return impact == event.ImpactHigh
	case FilterHighAndMedium:
		return impact == event.ImpactHigh || impact == event.ImpactMedium
	default:
		return true
	}
}

// Policy is a subscriber's notification preferences: which lead-time
// windows fire, over which channels, gated by which impact filter.
type Policy struct {
	// LeadWindowDays are the whole-calendar-day offsets before an event at
	// which a notification fires. {1, 3, 7} means a week-out, three-day,
	// and day-before reminder, each with its own dedup key.
	LeadWindowDays []int `json:"lead_window_days"`

	// Channels are the transports this policy requests. A channel is only
	// used if the account has enabled it too (see Subscriber).
	Channels []Channel `json:"channels"`

	// ImpactFilter gates events by severity.
	ImpactFilter ImpactFilter `json:"impact_filter"`
}

// HasWindow reports whether days is one of the policy's lead windows.
func (p Policy) HasWindow(days int) bool {
	for _, w := range p.LeadWindowDays {
		if w == days {
			return true
		}
	}
	return false
}

// Subscriber pairs a user's notification policy with the channels the
// account has opted into. The policy cannot grant a channel the account
// has not enabled; delivery always goes through ResolvedChannels.
type Subscriber struct {
	entity.Entity

	// UserID identifies the subscriber.
	UserID string `json:"user_id"`

	// Policy holds the notification preferences.
	Policy Policy `json:"policy"`

	// AccountChannels are the channels enabled at the account level.
	AccountChannels []Channel `json:"account_channels"`
}

// ResolvedChannels returns policy channels ∩ account-enabled channels,
// preserving policy order. An empty result means no notification: there is
// deliberately no implicit channel default.
func (s *Subscriber) ResolvedChannels() []Channel {
	enabled := make(map[Channel]bool, len(s.AccountChannels))
	for _, c := range s.AccountChannels {
		enabled[c] = true
	}

	var resolved []Channel
	for _, c := range s.Policy.Channels {
		if enabled[c] {
			resolved = append(resolved, c)
		}
	}
	return resolved
}
