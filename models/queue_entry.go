package models

import (
	"time"

	"github.com/gosimple/slug"
)

// Preferences describe what kind of bout a participant wants. Mode and
// activity types are normalized with slug so matching is insensitive
// to case, spacing and accents ("Sword Fighting" == "sword-fighting").
type Preferences struct {
	Mode          string   `json:"mode"`
	ActivityTypes []string `json:"activity_types"`
	Difficulty    string   `json:"difficulty"`
}

// Normalized returns a copy with slugged mode/activity/difficulty.
func (p Preferences) Normalized() Preferences {
	out := Preferences{
		Mode:       slug.Make(p.Mode),
		Difficulty: slug.Make(p.Difficulty),
	}
	seen := make(map[string]bool, len(p.ActivityTypes))
	for _, t := range p.ActivityTypes {
		s := slug.Make(t)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out.ActivityTypes = append(out.ActivityTypes, s)
	}
	return out
}

// SharesActivityType reports whether the two preference sets have at
// least one activity type in common.
func (p Preferences) SharesActivityType(other Preferences) bool {
	for _, a := range p.ActivityTypes {
		for _, b := range other.ActivityTypes {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Merged combines two compatible preference sets for a session: same
// mode, intersection of activity types, first difficulty wins.
func (p Preferences) Merged(other Preferences) Preferences {
	out := Preferences{Mode: p.Mode, Difficulty: p.Difficulty}
	for _, a := range p.ActivityTypes {
		for _, b := range other.ActivityTypes {
			if a == b {
				out.ActivityTypes = append(out.ActivityTypes, a)
			}
		}
	}
	if out.Difficulty == "" {
		out.Difficulty = other.Difficulty
	}
	return out
}

// QueueEntry is a pending, unmatched request to start a session.
// Owned by the queue service; at most one per participant.
type QueueEntry struct {
	ParticipantID string      `json:"participant_id"`
	Preferences   Preferences `json:"preferences"`
	SkillLevel    int         `json:"skill_level"`
	QueuedAt      time.Time   `json:"queued_at"`
}
