package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferencesNormalized(t *testing.T) {
	prefs := Preferences{
		Mode:          "Sword Fighting",
		ActivityTypes: []string{"Melee Combat", "melee-combat", "Ranged", ""},
		Difficulty:    "Very Hard",
	}

	got := prefs.Normalized()
	assert.Equal(t, "sword-fighting", got.Mode)
	assert.Equal(t, []string{"melee-combat", "ranged"}, got.ActivityTypes)
	assert.Equal(t, "very-hard", got.Difficulty)
}

func TestPreferencesSharesActivityType(t *testing.T) {
	a := Preferences{ActivityTypes: []string{"melee", "ranged"}}
	b := Preferences{ActivityTypes: []string{"ranged", "magic"}}
	c := Preferences{ActivityTypes: []string{"magic"}}

	assert.True(t, a.SharesActivityType(b))
	assert.False(t, a.SharesActivityType(c))
	assert.False(t, a.SharesActivityType(Preferences{}))
}

func TestPreferencesMerged(t *testing.T) {
	a := Preferences{Mode: "sparring", ActivityTypes: []string{"melee", "ranged"}, Difficulty: "hard"}
	b := Preferences{Mode: "sparring", ActivityTypes: []string{"ranged", "magic"}, Difficulty: "easy"}

	got := a.Merged(b)
	assert.Equal(t, "sparring", got.Mode)
	assert.Equal(t, []string{"ranged"}, got.ActivityTypes)
	assert.Equal(t, "hard", got.Difficulty)

	// First difficulty empty: the partner's wins.
	got = Preferences{Mode: "sparring", ActivityTypes: []string{"melee"}}.Merged(a)
	assert.Equal(t, "hard", got.Difficulty)
}

func TestSkillLevelBuckets(t *testing.T) {
	var missing *SkillProfile
	assert.Equal(t, 1, missing.SkillLevel())
	assert.Equal(t, 1, (&SkillProfile{}).SkillLevel())

	cases := []struct {
		overall float64
		level   int
	}{
		{0.0, 1},
		{0.05, 1},
		{0.5, 6},
		{0.95, 10},
		{1.0, 10},
	}
	for _, tc := range cases {
		profile := &SkillProfile{OverallSkill: tc.overall, SessionsPlayed: 5}
		assert.Equal(t, tc.level, profile.SkillLevel(), "overall %.2f", tc.overall)
	}
}

func TestCombatantHealthFractionAndClamp(t *testing.T) {
	c := NewCombatant("p1", DefaultCombatStats(), nil)
	assert.InDelta(t, 1.0, c.HealthFraction(), 1e-9)

	c.CurrentHealth = -5
	c.ClampHealth()
	assert.Equal(t, 0, c.CurrentHealth)

	c.CurrentHealth = 250
	c.ClampHealth()
	assert.Equal(t, c.MaxHealth, c.CurrentHealth)
}

func TestSessionOpponent(t *testing.T) {
	s := &TrainingSession{ParticipantIDs: [2]string{"alice", "bob"}}
	assert.Equal(t, "bob", s.Opponent("alice"))
	assert.Equal(t, "alice", s.Opponent("bob"))
}
