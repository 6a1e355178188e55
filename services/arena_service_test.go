package services

import (
	"sync"
	"testing"
	"time"

	"training-arena-system/config"
	"training-arena-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	byID map[string]models.CombatStats
}

func (f *fakeStats) GetCombatStats(participantID string) models.CombatStats {
	if f.byID != nil {
		if stats, ok := f.byID[participantID]; ok {
			return stats
		}
	}
	return models.DefaultCombatStats()
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []*models.TrainingSession
}

func (f *fakeRecorder) RecordSession(session *models.TrainingSession) {
	f.mu.Lock()
	f.recorded = append(f.recorded, session)
	f.mu.Unlock()
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorded)
}

type arenaFixture struct {
	arena    *ArenaService
	recorder *fakeRecorder
	notifier *fakeNotifier
	clock    *fakeClock
	stats    *fakeStats
}

// newArenaFixture wires an arena against fakes and a rigged engine
// whose draws always land a plain, non-critical hit.
func newArenaFixture(t *testing.T, rngVals ...float64) *arenaFixture {
	t.Helper()
	if len(rngVals) == 0 {
		rngVals = []float64{0.0, 0.9} // hit, no crit
	}
	cfg := config.Default()
	engine := NewCombatEngine(cfg.Combat, &fixedRng{vals: rngVals})
	recorder := &fakeRecorder{}
	notifier := newFakeNotifier()
	clock := newFakeClock()
	stats := &fakeStats{byID: make(map[string]models.CombatStats)}
	arena := NewArenaService(cfg, engine, stats, recorder, notifier)
	arena.now = clock.Now
	return &arenaFixture{arena: arena, recorder: recorder, notifier: notifier, clock: clock, stats: stats}
}

func (f *arenaFixture) startSession(t *testing.T, first, second string) *models.TrainingSession {
	t.Helper()
	session, err := f.arena.CreateSession(first, second, sparringPrefs())
	require.NoError(t, err)
	return session
}

func TestCreateSessionIndexesBothParticipants(t *testing.T) {
	f := newArenaFixture(t)
	session := f.startSession(t, "alice", "bob")

	assert.True(t, f.arena.HasActiveSession("alice"))
	assert.True(t, f.arena.HasActiveSession("bob"))
	assert.Equal(t, 1, f.arena.ActiveSessionCount())
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Contains(t, f.notifier.typesFor("alice"), "session_start")
	assert.Contains(t, f.notifier.typesFor("bob"), "session_start")
}

func TestCreateSessionRefusesBusyParticipant(t *testing.T) {
	f := newArenaFixture(t)
	f.startSession(t, "alice", "bob")

	_, err := f.arena.CreateSession("alice", "carol", sparringPrefs())
	assert.ErrorIs(t, err, models.ErrAlreadyInSession)
}

func TestCreateSessionCapacity(t *testing.T) {
	f := newArenaFixture(t)
	f.arena.cfg.MaxActiveSessions = 1
	f.startSession(t, "alice", "bob")

	_, err := f.arena.CreateSession("carol", "dave", sparringPrefs())
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.False(t, f.arena.HasActiveSession("carol"))
}

func TestSubmitActionWithoutSession(t *testing.T) {
	f := newArenaFixture(t)

	_, err := f.arena.SubmitAction("ghost", &models.CombatAction{Type: models.ActionAttack})
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestSubmitActionRateLimit(t *testing.T) {
	f := newArenaFixture(t)
	session := f.startSession(t, "alice", "bob")

	f.clock.Advance(2 * time.Second)
	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)
	healthAfterFirst := session.Combatants["bob"].CurrentHealth

	// 200ms later the next action bounces — from either participant —
	// and nothing changes.
	f.clock.Advance(200 * time.Millisecond)
	_, err = f.arena.SubmitAction("bob", &models.CombatAction{Type: models.ActionAttack})
	assert.ErrorIs(t, err, models.ErrActionRateLimited)
	assert.Equal(t, healthAfterFirst, session.Combatants["bob"].CurrentHealth)
	assert.Len(t, session.ActionLog, 1)

	// Once the cooldown passes it goes through.
	f.clock.Advance(time.Second)
	_, err = f.arena.SubmitAction("bob", &models.CombatAction{Type: models.ActionAttack})
	assert.NoError(t, err)
}

func TestSubmitActionRejectsForeignTarget(t *testing.T) {
	f := newArenaFixture(t)
	f.startSession(t, "alice", "bob")

	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack, TargetID: "mallory"})
	assert.ErrorIs(t, err, models.ErrInvalidAction)
}

func TestEliminationEndsSession(t *testing.T) {
	f := newArenaFixture(t)
	f.stats.byID["bob"] = models.CombatStats{MaxHealth: 5, Attack: 50, Accuracy: 70, Evasion: 20}
	session := f.startSession(t, "alice", "bob")

	// One default hit deals 5 — exactly bob's health.
	result, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Damage)

	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, models.EndReasonElimination, session.EndReason)
	require.NotNil(t, session.WinnerID)
	assert.Equal(t, "alice", *session.WinnerID)

	// Both participants are released and the session is recorded once.
	assert.False(t, f.arena.HasActiveSession("alice"))
	assert.False(t, f.arena.HasActiveSession("bob"))
	assert.Equal(t, 1, f.recorder.count())
	assert.Contains(t, f.notifier.typesFor("bob"), "session_end")
}

func TestMutualEliminationIsDraw(t *testing.T) {
	f := newArenaFixture(t)
	f.stats.byID["bob"] = models.CombatStats{MaxHealth: 5, Attack: 50, Accuracy: 70, Evasion: 20}
	session := f.startSession(t, "alice", "bob")

	// Alice is at 2 health with a burn that will finish her the moment
	// she acts; her attack finishes bob in the same resolution.
	alice := session.Combatants["alice"]
	alice.CurrentHealth = 2
	alice.ActiveBuffs["burn"] = &models.Buff{Magnitude: 2, RemainingRounds: 2}

	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)

	assert.Equal(t, models.EndReasonMutualElimination, session.EndReason)
	assert.Nil(t, session.WinnerID)
}

func TestTimeLimitPicksHealthierParticipant(t *testing.T) {
	f := newArenaFixture(t)
	session := f.startSession(t, "alice", "bob")

	f.clock.Advance(2 * time.Second)
	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err) // bob down 5

	f.clock.Advance(6 * time.Minute)
	_, err = f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)

	assert.Equal(t, models.SessionExpired, session.Status)
	assert.Equal(t, models.EndReasonTimeLimit, session.EndReason)
	require.NotNil(t, session.WinnerID)
	assert.Equal(t, "alice", *session.WinnerID)
}

func TestTimeLimitEqualHealthIsDraw(t *testing.T) {
	// Both miss everything, so health never moves.
	f := newArenaFixture(t, 0.96)
	session := f.startSession(t, "alice", "bob")

	f.clock.Advance(6 * time.Minute)
	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)

	assert.Equal(t, models.EndReasonTimeLimit, session.EndReason)
	assert.Nil(t, session.WinnerID)
}

func TestSubmitActionAfterEndReportsNoSession(t *testing.T) {
	f := newArenaFixture(t)
	f.stats.byID["bob"] = models.CombatStats{MaxHealth: 5, Attack: 50, Accuracy: 70, Evasion: 20}
	f.startSession(t, "alice", "bob")

	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	_, err = f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestEndSessionIsIdempotent(t *testing.T) {
	f := newArenaFixture(t)
	session := f.startSession(t, "alice", "bob")

	winner := "alice"
	assert.True(t, f.arena.EndSession(session.ID, &winner, models.EndReasonElimination))
	assert.False(t, f.arena.EndSession(session.ID, &winner, models.EndReasonElimination))
	assert.False(t, f.arena.CancelSession(session.ID))
	assert.Equal(t, 1, f.recorder.count())
}

func TestCancelSessionReleasesParticipants(t *testing.T) {
	f := newArenaFixture(t)
	session := f.startSession(t, "alice", "bob")

	assert.True(t, f.arena.CancelSession(session.ID))
	assert.Equal(t, models.EndReasonCancelled, session.EndReason)
	assert.Nil(t, session.WinnerID)
	assert.False(t, f.arena.HasActiveSession("alice"))

	// Freed participants can start a new session right away.
	_, err := f.arena.CreateSession("alice", "carol", sparringPrefs())
	assert.NoError(t, err)
}

func TestSweepExpiredTerminatesOverdueSessions(t *testing.T) {
	f := newArenaFixture(t)
	f.arena.cfg.IdleTimeout = time.Hour // isolate the duration budget
	session := f.startSession(t, "alice", "bob")
	start := f.clock.Now()

	// Inside budget + grace: untouched.
	assert.Zero(t, f.arena.SweepExpired(start.Add(5*time.Minute)))
	assert.Equal(t, models.SessionActive, session.Status)

	swept := f.arena.SweepExpired(start.Add(5*time.Minute + 31*time.Second))
	assert.Equal(t, 1, swept)
	assert.Equal(t, models.SessionExpired, session.Status)
	assert.Equal(t, models.EndReasonExpired, session.EndReason)
	assert.Nil(t, session.WinnerID)
	assert.False(t, f.arena.HasActiveSession("alice"))
}

func TestSweepExpiredTerminatesIdleSessions(t *testing.T) {
	f := newArenaFixture(t)
	session := f.startSession(t, "alice", "bob")

	f.clock.Advance(2 * time.Second)
	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)
	lastAction := f.clock.Now()

	assert.Zero(t, f.arena.SweepExpired(lastAction.Add(time.Minute)))
	assert.Equal(t, 1, f.arena.SweepExpired(lastAction.Add(2*time.Minute+time.Second)))
	assert.Equal(t, models.EndReasonExpired, session.EndReason)
}

func TestSnapshotReflectsSessionState(t *testing.T) {
	f := newArenaFixture(t)
	session := f.startSession(t, "alice", "bob")

	f.clock.Advance(2 * time.Second)
	_, err := f.arena.SubmitAction("alice", &models.CombatAction{Type: models.ActionAttack})
	require.NoError(t, err)

	snap, err := f.arena.Snapshot("alice")
	require.NoError(t, err)
	assert.Equal(t, session.ID, snap.SessionID)
	assert.Equal(t, "bob", snap.OpponentID)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 95, snap.Combatants["bob"].CurrentHealth)

	_, err = f.arena.Snapshot("nobody")
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}
