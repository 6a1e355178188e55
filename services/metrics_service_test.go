package services

import (
	"testing"
	"time"

	"training-arena-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedSession() *models.TrainingSession {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.TrainingSession{
		ID:             "session-1",
		ParticipantIDs: [2]string{"alice", "bob"},
		StartedAt:      start,
		EndedAt:        start.Add(2 * time.Minute),
		Status:         models.SessionCompleted,
		ActionLog: []*models.ActionResult{
			{ActorID: "alice", Type: models.ActionAttack, Hit: true, Experience: 5},
			{ActorID: "bob", Type: models.ActionDefend, Hit: true},
			{ActorID: "alice", Type: models.ActionAttack, Hit: false},
			{ActorID: "bob", Type: models.ActionAttack, Hit: true, Experience: 3},
			{ActorID: "alice", Type: models.ActionHeal, Hit: true},
			{ActorID: "bob", Type: models.ActionAttack, Hit: false},
		},
	}
}

func TestComputeSessionMetrics(t *testing.T) {
	metrics := ComputeSessionMetrics(finishedSession())

	assert.Equal(t, 2*time.Minute, metrics.Duration)
	assert.Equal(t, 6, metrics.TotalActions)

	alice := metrics.Participants["alice"]
	assert.Equal(t, 3, alice.Actions)
	assert.Equal(t, 2, alice.Hits)
	assert.InDelta(t, 2.0/3.0, alice.HitRate, 1e-9)
	assert.Equal(t, 5, alice.Experience)
	assert.Equal(t, 2, alice.DistinctActions) // attack + heal
	assert.InDelta(t, 0.5, alice.Strategy, 1e-9)
	assert.InDelta(t, 1.5, alice.ActionsPerMin, 1e-9)

	bob := metrics.Participants["bob"]
	assert.Equal(t, 3, bob.Actions)
	assert.InDelta(t, 2.0/3.0, bob.HitRate, 1e-9)
	assert.Equal(t, 2, bob.DistinctActions) // defend + attack
}

func TestComputeSessionMetricsEmptyLog(t *testing.T) {
	session := finishedSession()
	session.ActionLog = nil

	metrics := ComputeSessionMetrics(session)
	assert.Zero(t, metrics.TotalActions)
	alice := metrics.Participants["alice"]
	assert.Zero(t, alice.Actions)
	assert.Zero(t, alice.HitRate)
	assert.Zero(t, alice.Strategy)
}

func TestComputeSessionMetricsNegativeDurationClamped(t *testing.T) {
	session := finishedSession()
	session.EndedAt = session.StartedAt.Add(-time.Second)

	metrics := ComputeSessionMetrics(session)
	assert.Zero(t, metrics.Duration)
	assert.Zero(t, metrics.Participants["alice"].ActionsPerMin)
}

func TestFoldProfileFreshProfile(t *testing.T) {
	profile := &models.SkillProfile{ParticipantID: "alice"}
	endedAt := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)

	FoldProfile(profile, ParticipantMetrics{
		HitRate:       0.5,
		ActionsPerMin: 10,
		Strategy:      0.5,
	}, endedAt)

	assert.InDelta(t, 0.25, profile.AccuracyAverage, 1e-9) // (0 + 0.5) / 2
	assert.InDelta(t, 0.1, profile.TimingScore, 1e-9)      // 10 / 100
	// 0.4×0.25 + 0.3×0.1 + 0.3×0.5
	assert.InDelta(t, 0.28, profile.OverallSkill, 1e-9)
	assert.Equal(t, int64(1), profile.SessionsPlayed)
	require.NotNil(t, profile.LastSessionAt)
	assert.True(t, profile.LastSessionAt.Equal(endedAt))
}

func TestFoldProfileRunningAverage(t *testing.T) {
	profile := &models.SkillProfile{
		ParticipantID:   "alice",
		AccuracyAverage: 0.8,
		TimingScore:     0.4,
		SessionsPlayed:  3,
	}

	FoldProfile(profile, ParticipantMetrics{HitRate: 0.6, ActionsPerMin: 20, Strategy: 0.75}, time.Now())

	assert.InDelta(t, 0.7, profile.AccuracyAverage, 1e-9) // (0.8 + 0.6) / 2
	assert.InDelta(t, 0.6, profile.TimingScore, 1e-9)     // 0.4 + 0.2
	assert.InDelta(t, 0.4*0.7+0.3*0.6+0.3*0.75, profile.OverallSkill, 1e-9)
	assert.Equal(t, int64(4), profile.SessionsPlayed)
}

func TestFoldProfileTimingScoreCapped(t *testing.T) {
	profile := &models.SkillProfile{TimingScore: 0.95}

	FoldProfile(profile, ParticipantMetrics{ActionsPerMin: 50}, time.Now())

	assert.InDelta(t, 1.0, profile.TimingScore, 1e-9)
}
