package chat

import "time"

type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeUpstreamError Outcome = "upstream_error"
	OutcomeClientClosed  Outcome = "client_closed"
)

// UsageEvent describes one finished chat stream. It carries no message text.
type UsageEvent struct {
	ID         string    `json:"id"`
	UserID     uint64    `json:"user_id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Fragments  int       `json:"fragments"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	Outcome    Outcome   `json:"outcome"`
	At         time.Time `json:"at"`
}

type UsageRecord struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"event_id"`
	UserID     uint64    `gorm:"index;not null" json:"-"`
	Provider   string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model      string    `gorm:"type:varchar(128);not null" json:"model"`
	Fragments  int       `gorm:"not null" json:"fragments"`
	Bytes      int64     `gorm:"not null" json:"bytes"`
	DurationMS int64     `gorm:"not null" json:"duration_ms"`
	Outcome    Outcome   `gorm:"type:varchar(16);index;not null" json:"outcome"`
	StreamedAt time.Time `gorm:"not null" json:"streamed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (UsageRecord) TableName() string { return "usage_records" }

func RecordFromEvent(ev UsageEvent) *UsageRecord {
	return &UsageRecord{
		EventID:    ev.ID,
		UserID:     ev.UserID,
		Provider:   ev.Provider,
		Model:      ev.Model,
		Fragments:  ev.Fragments,
		Bytes:      ev.Bytes,
		DurationMS: ev.DurationMS,
		Outcome:    ev.Outcome,
		StreamedAt: ev.At,
	}
}
