package sqlite

import (
	"encoding/json"
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

	ID          string     `grove:"id,pk"`
	Title       string     `grove:"title"`
	Description string     `grove:"description"`
	Category    string     `grove:"category"`
	Impact      string     `grove:"impact"`
	OccursAt    time.Time  `grove:"occurs_at"`
	Source      string     `grove:"source"`
	Ignored     bool       `grove:"ignored"`
	IgnoredAt   *time.Time `grove:"ignored_at"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
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

	UserID          string    `grove:"user_id,pk"`
	LeadWindowDays  string    `grove:"lead_window_days"` // JSON array
	Channels        string    `grove:"channels"`         // JSON array
	ImpactFilter    string    `grove:"impact_filter"`
	AccountChannels string    `grove:"account_channels"` // JSON array
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
}

func toPolicyModel(sub *policy.Subscriber) *policyModel {
	windows, _ := json.Marshal(sub.Policy.LeadWindowDays)   //nolint:errcheck // best-effort
	channels, _ := json.Marshal(sub.Policy.Channels)        //nolint:errcheck // best-effort
	accountChannels, _ := json.Marshal(sub.AccountChannels) //nolint:errcheck // best-effort
	return &policyModel{
		UserID:          sub.UserID,
		LeadWindowDays:  string(windows),
		Channels:        string(channels),
		ImpactFilter:    string(sub.Policy.ImpactFilter),
		AccountChannels: string(accountChannels),
		CreatedAt:       sub.CreatedAt,
		UpdatedAt:       sub.UpdatedAt,
	}
}

func fromPolicyModel(m *policyModel) *policy.Subscriber {
	var windows []int
	if m.LeadWindowDays != "" {
		_ = json.Unmarshal([]byte(m.LeadWindowDays), &windows) //nolint:errcheck // best-effort
	}
	return &policy.Subscriber{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID: m.UserID,
		Policy: policy.Policy{
			LeadWindowDays: windows,
			Channels:       unmarshalChannels(m.Channels),
			ImpactFilter:   policy.ImpactFilter(m.ImpactFilter),
		},
		AccountChannels: unmarshalChannels(m.AccountChannels),
	}
}

// --- Ledger models ---

type ledgerModel struct {
	grove.BaseModel `grove:"table:almanac_ledger"`

	ID             string    `grove:"id"`
	EventID        string    `grove:"event_id"`
	UserID         string    `grove:"user_id"`
	LeadWindowDays int       `grove:"lead_window_days"`
	OccursAt       time.Time `grove:"occurs_at"`
	ChannelsSent   string    `grove:"channels_sent"` // JSON array
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toLedgerModel(rec *ledger.Record) *ledgerModel {
	sent, _ := json.Marshal(rec.ChannelsSent) //nolint:errcheck // best-effort
	return &ledgerModel{
		ID:             rec.ID.String(),
		EventID:        string(rec.EventID),
		UserID:         rec.UserID,
		LeadWindowDays: rec.LeadWindowDays,
		OccursAt:       rec.OccursAt,
		ChannelsSent:   string(sent),
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
		ChannelsSent:   unmarshalChannels(m.ChannelsSent),
	}, nil
}

// --- DLQ models ---

type dlqEntryModel struct {
	grove.BaseModel `grove:"table:almanac_dlq"`

	ID             string    `grove:"id,pk"`
	EventID        string    `grove:"event_id"`
	UserID         string    `grove:"user_id"`
	Channel        string    `grove:"channel"`
	LeadWindowDays int       `grove:"lead_window_days"`
	Message        string    `grove:"message"`
	Error          string    `grove:"error"`
	FailedAt       time.Time `grove:"failed_at"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
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

// unmarshalChannels decodes a JSON channel array, tolerating empty input.
func unmarshalChannels(s string) []policy.Channel {
	var channels []policy.Channel
	if s != "" {
		_ = json.Unmarshal([]byte(s), &channels) //nolint:errcheck // best-effort
	}
	return channels
}
