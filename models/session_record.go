package models

import "time"

// SessionRecord is the durable trace of one finished training session
// (the only long-term history this service retains).
type SessionRecord struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	SessionID string `gorm:"uniqueIndex;not null" json:"session_id"`

	ParticipantA string  `gorm:"index;not null" json:"participant_a"`
	ParticipantB string  `gorm:"index;not null" json:"participant_b"`
	WinnerID     *string `gorm:"index" json:"winner_id,omitempty"` // nil = draw / expiry

	Mode      string `json:"mode"`
	EndReason string `json:"end_reason" gorm:"type:varchar(32)"`

	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	DurationSec int       `json:"duration_sec" gorm:"default:0"`

	TotalActions int     `json:"total_actions" gorm:"default:0"`
	HitRateA     float64 `json:"hit_rate_a" gorm:"default:0"`
	HitRateB     float64 `json:"hit_rate_b" gorm:"default:0"`
	ExperienceA  int     `json:"experience_a" gorm:"default:0"`
	ExperienceB  int     `json:"experience_b" gorm:"default:0"`

	ArchiveURL string `json:"archive_url,omitempty"` // action log in R2, if archival is on

	Timestamps
}

// ArenaStats is a single denormalized row of global analytics
// counters, folded into on every finalize.
type ArenaStats struct {
	ID uint `gorm:"primaryKey" json:"id"` // always 1

	MatchesMade       int64 `json:"matches_made" gorm:"default:0"`
	SessionsCompleted int64 `json:"sessions_completed" gorm:"default:0"`
	SessionsExpired   int64 `json:"sessions_expired" gorm:"default:0"`
	TotalActions      int64 `json:"total_actions" gorm:"default:0"`
	QueueExpiries     int64 `json:"queue_expiries" gorm:"default:0"`

	Timestamps
}
