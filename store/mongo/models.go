package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/almanac/dlq"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/id"
	"github.com/xraph/almanac/internal/entity"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/policy"
)

// --- Event models ---

type eventModel struct {
	grove.BaseModel `grove:"table:almanac_events"`

	ID          string     `grove:"id,pk"       bson:"_id"`
	Title       string     `grove:"title"       bson:"title"`
	Description string     `grove:"description" bson:"description"`
	Category    string     `grove:"category"    bson:"category"`
	Impact      string     `grove:"impact"      bson:"impact"`
	OccursAt    time.Time  `grove:"occurs_at"   bson:"occurs_at"`
	Source      string     `grove:"source"      bson:"source"`
	Ignored     bool       `grove:"ignored"     bson:"ignored"`
	IgnoredAt   *time.Time `grove:"ignored_at"  bson:"ignored_at,omitempty"`
	CreatedAt   time.Time  `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"  bson:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:          string(evt.ID),
		Title:       evt.Title,
		Description: evt.Description,
		Category:    string(evt.Category),
		Impact:      string(evt.Impact),
		OccursAt:    evt.OccursAt,
		Source:      evt.Source,
		Ignored:     evt.Ignored,
		IgnoredAt:   evt.IgnoredAt,
		CreatedAt:   evt.CreatedAt,
		UpdatedAt:   evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) *event.Event {
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          event.ID(m.ID),
		Title:       m.Title,
		Description: m.Description,
		Category:    event.Category(m.Category),
		Impact:      event.Impact(m.Impact),
		OccursAt:    m.OccursAt,
		Source:      m.Source,
		Ignored:     m.Ignored,
		IgnoredAt:   m.IgnoredAt,
	}
}

// --- Policy models ---

type policyModel struct {
	grove.BaseModel `grove:"table:almanac_policies"`

	UserID          string    `grove:"user_id,pk"       bson:"_id"`
	LeadWindowDays  []int     `grove:"lead_window_days" bson:"lead_window_days"`
	Channels        []string  `grove:"channels"         bson:"channels"`
	ImpactFilter    string    `grove:"impact_filter"    bson:"impact_filter"`
	AccountChannels []string  `grove:"account_channels" bson:"account_channels"`
	CreatedAt       time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toPolicyModel(sub *policy.Subscriber) *policyModel {
	return &policyModel{
		UserID:          sub.UserID,
		LeadWindowDays:  sub.Policy.LeadWindowDays,
		Channels:        channelsToStrings(sub.Policy.Channels),
		ImpactFilter:    string(sub.Policy.ImpactFilter),
		AccountChannels: channelsToStrings(sub.AccountChannels),
		CreatedAt:       sub.CreatedAt,
		UpdatedAt:       sub.UpdatedAt,
	}
}

func fromPolicyModel(m *policyModel) *policy.Subscriber {
	return &policy.Subscriber{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID: m.UserID,
		Policy: policy.Policy{
			LeadWindowDays: m.LeadWindowDays,
			Channels:       stringsToChannels(m.Channels),
			ImpactFilter:   policy.ImpactFilter(m.ImpactFilter),
		},
		AccountChannels: stringsToChannels(m.AccountChannels),
	}
}

// --- Ledger models ---

type ledgerModel struct {
	grove.BaseModel `grove:"table:almanac_ledger"`

	ID             string    `grove:"id,pk"            bson:"_id"`
	EventID        string    `grove:"event_id"         bson:"event_id"`
	UserID         string    `grove:"user_id"          bson:"user_id"`
	LeadWindowDays int       `grove:"lead_window_days" bson:"lead_window_days"`
	OccursAt       time.Time `grove:"occurs_at"        bson:"occurs_at"`
	ChannelsSent   []string  `grove:"channels_sent"    bson:"channels_sent"`
	CreatedAt      time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toLedgerModel(rec *ledger.Record) *ledgerModel {
	return &ledgerModel{
		ID:             rec.ID.String(),
		EventID:        string(rec.EventID),
		UserID:         rec.UserID,
		LeadWindowDays: rec.LeadWindowDays,
		OccursAt:       rec.OccursAt,
		ChannelsSent:   channelsToStrings(rec.ChannelsSent),
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func fromLedgerModel(m *ledgerModel) (*ledger.Record, error) {
	recID, err := id.ParseDispatchID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dispatch ID %q: %w", m.ID, err)
	}

	return &ledger.Record{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             recID,
		EventID:        event.ID(m.EventID),
		UserID:         m.UserID,
		LeadWindowDays: m.LeadWindowDays,
		OccursAt:       m.OccursAt,
		ChannelsSent:   stringsToChannels(m.ChannelsSent),
	}, nil
}

// --- DLQ models ---

type dlqEntryModel struct {
	grove.BaseModel `grove:"table:almanac_dlq"`

	ID             string    `grove:"id,pk"            bson:"_id"`
	EventID        string    `grove:"event_id"         bson:"event_id"`
	UserID         string    `grove:"user_id"          bson:"user_id"`
	Channel        string    `grove:"channel"          bson:"channel"`
	LeadWindowDays int       `grove:"lead_window_days" bson:"lead_window_days"`
	Message        string    `grove:"message"          bson:"message"`
	Error          string    `grove:"error"            bson:"error"`
	FailedAt       time.Time `grove:"failed_at"        bson:"failed_at"`
	CreatedAt      time.Time `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"       bson:"updated_at"`
}

func toDLQEntryModel(e *dlq.Entry) *dlqEntryModel {
	return &dlqEntryModel{
		ID:             e.ID.String(),
		EventID:        string(e.EventID),
		UserID:         e.UserID,
		Channel:        string(e.Channel),
		LeadWindowDays: e.LeadWindowDays,
		Message:        e.Message,
		Error:          e.Error,
		FailedAt:       e.FailedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func fromDLQEntryModel(m *dlqEntryModel) (*dlq.Entry, error) {
	dlqID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse DLQ ID %q: %w", m.ID, err)
	}

	return &dlq.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             dlqID,
		EventID:        event.ID(m.EventID),
		UserID:         m.UserID,
		Channel:        policy.Channel(m.Channel),
		LeadWindowDays: m.LeadWindowDays,
		Message:        m.Message,
		Error:          m.Error,
		FailedAt:       m.FailedAt,
	}, nil
}

func channelsToStrings(channels []policy.Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}

func stringsToChannels(ss []string) []policy.Channel {
	if len(ss) == 0 {
		return nil
	}
	out := make([]policy.Channel, len(ss))
	for i, s := range ss {
		out[i] = policy.Channel(s)
	}
	return out
}
