package policy

// Input is the creation/update payload for subscriber policies.
type Input struct {
	// UserID identifies the subscriber.
	UserID string `json:"user_id"`

	// LeadWindowDays are the whole-day offsets before an event at which
	// notifications fire. Must be positive.
	LeadWindowDays []int `json:"lead_window_days"`

	// Channels are the requested transports. Each must be enabled at the
	// account level.
	Channels []Channel `json:"channels"`

	// ImpactFilter gates events by severity. Defaults to "all" when empty.
	ImpactFilter ImpactFilter `json:"impact_filter"`

	// AccountChannels are the account-level enabled channels. Nil leaves
	// the existing account mask unchanged on update.
	AccountChannels []Channel `json:"account_channels"`
}

// ListOpts configures filtering and pagination for policy listing.
type ListOpts struct {
	Offset int
	Limit  int
}
