package models

import (
	"sync"
	"time"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// End reasons reported on session_end.
const (
	EndReasonElimination       = "elimination"
	EndReasonMutualElimination = "mutual_elimination"
	EndReasonTimeLimit         = "time_limit"
	EndReasonExpired           = "expired"
	EndReasonCancelled         = "cancelled"
)

type ActionType string

const (
	ActionAttack  ActionType = "attack"
	ActionDefend  ActionType = "defend"
	ActionHeal    ActionType = "heal"
	ActionSpecial ActionType = "special_ability"
)

// CombatAction is the payload a participant submits for one turn.
type CombatAction struct {
	Type        ActionType `json:"type"`
	TargetID    string     `json:"target_id,omitempty"`
	AbilityID   string     `json:"ability_id,omitempty"`
	PowerAttack bool       `json:"power_attack,omitempty"`
	QuickAttack bool       `json:"quick_attack,omitempty"`
}

// ActionResult is what one resolved action did. Appended to the
// session's action log and pushed to both participants.
type ActionResult struct {
	Round        int        `json:"round"`
	ActorID      string     `json:"actor_id"`
	TargetID     string     `json:"target_id"`
	Type         ActionType `json:"type"`
	Hit          bool       `json:"hit"`
	Critical     bool       `json:"critical,omitempty"`
	Damage       int        `json:"damage,omitempty"`
	Healing      int        `json:"healing,omitempty"`
	Experience   int        `json:"experience,omitempty"`
	Effect       string     `json:"effect,omitempty"`
	BurnDamage   int        `json:"burn_damage,omitempty"`
	ActorHealth  int        `json:"actor_health"`
	TargetHealth int        `json:"target_health"`
	At           time.Time  `json:"at"`
}

// Buff is a temporary combat modifier on one combatant.
type Buff struct {
	Magnitude       float64 `json:"magnitude"`
	RemainingRounds int     `json:"remaining_rounds"`
}

// CombatStats is the contract with the external player stat provider.
type CombatStats struct {
	MaxHealth int `json:"max_health"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	Accuracy  int `json:"accuracy"`
	Evasion   int `json:"evasion"`
	Speed     int `json:"speed"`
	Level     int `json:"level"`
}

// DefaultCombatStats are used whenever the provider is unreachable or
// has no record for the participant.
func DefaultCombatStats() CombatStats {
	return CombatStats{
		MaxHealth: 100,
		Attack:    50,
		Defense:   30,
		Accuracy:  70,
		Evasion:   20,
		Speed:     50,
		Level:     1,
	}
}

// Combatant is the in-session mutable combat state derived from a
// participant's stats. Never shared across sessions.
type Combatant struct {
	ParticipantID    string           `json:"participant_id"`
	CurrentHealth    int              `json:"current_health"`
	MaxHealth        int              `json:"max_health"`
	Attack           int              `json:"attack"`
	Defense          int              `json:"defense"`
	Accuracy         int              `json:"accuracy"`
	Evasion          int              `json:"evasion"`
	ExperienceGained int              `json:"experience_gained"`
	KnownAbilities   []string         `json:"known_abilities"`
	Cooldowns        map[string]int   `json:"cooldowns"`
	ActiveBuffs      map[string]*Buff `json:"active_buffs"`
}

// NewCombatant builds fresh in-session state from provider stats.
func NewCombatant(participantID string, stats CombatStats, abilities []string) *Combatant {
	return &Combatant{
		ParticipantID:  participantID,
		CurrentHealth:  stats.MaxHealth,
		MaxHealth:      stats.MaxHealth,
		Attack:         stats.Attack,
		Defense:        stats.Defense,
		Accuracy:       stats.Accuracy,
		Evasion:        stats.Evasion,
		KnownAbilities: abilities,
		Cooldowns:      make(map[string]int),
		ActiveBuffs:    make(map[string]*Buff),
	}
}

// HealthFraction is used for the time-limit winner decision.
func (c *Combatant) HealthFraction() float64 {
	if c.MaxHealth <= 0 {
		return 0
	}
	return float64(c.CurrentHealth) / float64(c.MaxHealth)
}

// ClampHealth keeps CurrentHealth inside [0, MaxHealth]. Called after
// every mutation of health.
func (c *Combatant) ClampHealth() {
	if c.CurrentHealth < 0 {
		c.CurrentHealth = 0
	}
	if c.CurrentHealth > c.MaxHealth {
		c.CurrentHealth = c.MaxHealth
	}
}

// TrainingSession is one time-boxed, two-participant bout. The Mu lock
// serializes action resolution inside the session; the supervisor's
// own lock guards the session indices.
type TrainingSession struct {
	Mu sync.Mutex `json:"-"`

	ID             string                `json:"session_id"`
	ParticipantIDs [2]string             `json:"participant_ids"`
	Combatants     map[string]*Combatant `json:"combatants"`
	Preferences    Preferences           `json:"preferences"`
	StartedAt      time.Time             `json:"started_at"`
	LastActionAt   time.Time             `json:"last_action_at"`
	Status         SessionStatus         `json:"status"`
	ActionLog      []*ActionResult       `json:"action_log"`
	WinnerID       *string               `json:"winner_id"`
	EndReason      string                `json:"end_reason,omitempty"`
	EndedAt        time.Time             `json:"ended_at,omitempty"`
}

// Opponent returns the other participant's id.
func (s *TrainingSession) Opponent(participantID string) string {
	if s.ParticipantIDs[0] == participantID {
		return s.ParticipantIDs[1]
	}
	return s.ParticipantIDs[0]
}

// Event is one push notification to a participant. Delivery is
// best-effort — session state never depends on it.
type Event struct {
	Type      string      `json:"type"` // session_start | action_result | session_end | queue_update
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}
