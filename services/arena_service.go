// services/arena_service.go
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"training-arena-system/config"
	"training-arena-system/models"
	"training-arena-system/utils"

	"github.com/google/uuid"
)

// SessionRecorder folds a finished session into durable state (skill
// profiles, session records, global counters). The metrics service is
// the production implementation.
type SessionRecorder interface {
	RecordSession(session *models.TrainingSession)
}

// ArenaService owns the authoritative set of active sessions. Two
// strongly-typed indices — by session id and by participant id — are
// kept consistent by a single mutation path under one lock. Action
// resolution inside a session runs under that session's own lock, so
// two sessions resolve fully in parallel while two actions in the same
// session never race.
type ArenaService struct {
	cfg      *config.Config
	combat   *CombatEngine
	stats    StatProvider
	recorder SessionRecorder
	notifier Notifier

	mu            sync.Mutex
	byID          map[string]*models.TrainingSession
	byParticipant map[string]string // participantId → sessionId

	now func() time.Time
}

func NewArenaService(cfg *config.Config, combat *CombatEngine, stats StatProvider, recorder SessionRecorder, notifier Notifier) *ArenaService {
	return &ArenaService{
		cfg:           cfg,
		combat:        combat,
		stats:         stats,
		recorder:      recorder,
		notifier:      notifier,
		byID:          make(map[string]*models.TrainingSession),
		byParticipant: make(map[string]string),
		now:           time.Now,
	}
}

// HasActiveSession reports whether the participant is in a session.
func (a *ArenaService) HasActiveSession(participantID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.byParticipant[participantID]
	return ok
}

// ActiveSessionCount is used by getStats and the capacity check.
func (a *ArenaService) ActiveSessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byID)
}

// CreateSession builds a session for a freshly matched pair. Fails
// with CapacityExceeded when the concurrency cap is reached — the
// caller (queue) rolls the match back.
func (a *ArenaService) CreateSession(firstID, secondID string, prefs models.Preferences) (*models.TrainingSession, error) {
	// Stat fetches go over HTTP — do them before taking any lock.
	statsA := a.stats.GetCombatStats(firstID)
	statsB := a.stats.GetCombatStats(secondID)

	now := a.now()
	session := &models.TrainingSession{
		ID:             uuid.NewString(),
		ParticipantIDs: [2]string{firstID, secondID},
		Combatants: map[string]*models.Combatant{
			firstID:  models.NewCombatant(firstID, statsA, DefaultAbilityIDs()),
			secondID: models.NewCombatant(secondID, statsB, DefaultAbilityIDs()),
		},
		Preferences: prefs,
		StartedAt:   now,
		Status:      models.SessionActive,
	}

	a.mu.Lock()
	if len(a.byID) >= a.cfg.MaxActiveSessions {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %d active", models.ErrCapacityExceeded, a.cfg.MaxActiveSessions)
	}
	if _, busy := a.byParticipant[firstID]; busy {
		a.mu.Unlock()
		return nil, models.ErrAlreadyInSession
	}
	if _, busy := a.byParticipant[secondID]; busy {
		a.mu.Unlock()
		return nil, models.ErrAlreadyInSession
	}
	a.byID[session.ID] = session
	a.byParticipant[firstID] = session.ID
	a.byParticipant[secondID] = session.ID
	a.mu.Unlock()

	log.Printf("[ARENA] Session %s started: %s vs %s (mode=%s)", session.ID, firstID, secondID, prefs.Mode)

	for _, pid := range session.ParticipantIDs {
		a.notifier.Publish(pid, models.Event{
			Type:      "session_start",
			SessionID: session.ID,
			Data: fiberMap{
				"opponent": session.Opponent(pid),
				"mode":     prefs.Mode,
			},
			At: now,
		})
	}
	return session, nil
}

// fiberMap keeps event payloads JSON-friendly without pulling fiber
// into every call site.
type fiberMap map[string]interface{}

// SubmitAction routes an action to the owning session, resolves it,
// and runs the win-condition check. Rejections are immediate — nothing
// queues behind a rate limit or a finished session.
func (a *ArenaService) SubmitAction(participantID string, action *models.CombatAction) (*models.ActionResult, error) {
	a.mu.Lock()
	sessionID, ok := a.byParticipant[participantID]
	session := a.byID[sessionID]
	a.mu.Unlock()
	if !ok || session == nil {
		return nil, models.ErrNoActiveSession
	}

	session.Mu.Lock()

	if session.Status != models.SessionActive {
		session.Mu.Unlock()
		return nil, models.ErrSessionNotActive
	}

	now := a.now()
	if !session.LastActionAt.IsZero() && now.Sub(session.LastActionAt) < a.cfg.ActionCooldown {
		session.Mu.Unlock()
		return nil, models.ErrActionRateLimited
	}

	actor := session.Combatants[participantID]
	opponentID := session.Opponent(participantID)
	target := session.Combatants[opponentID]
	if action.TargetID != "" && action.TargetID != opponentID && action.TargetID != participantID {
		session.Mu.Unlock()
		return nil, fmt.Errorf("%w: target %q not in session", models.ErrInvalidAction, action.TargetID)
	}

	result, err := a.combat.ResolveAction(actor, target, action, len(session.ActionLog)+1, now)
	if err != nil {
		session.Mu.Unlock()
		return nil, err
	}

	session.ActionLog = append(session.ActionLog, result)
	session.LastActionAt = now

	ended := a.checkWinConditionsLocked(session, now)
	session.Mu.Unlock()

	for _, pid := range session.ParticipantIDs {
		a.notifier.Publish(pid, models.Event{
			Type:      "action_result",
			SessionID: session.ID,
			Data:      result,
			At:        now,
		})
	}

	if ended {
		a.finalize(session)
	}
	return result, nil
}

// checkWinConditionsLocked transitions the session out of Active when
// an end condition holds. Caller holds the session lock; the actual
// teardown happens in finalize once the lock is released.
func (a *ArenaService) checkWinConditionsLocked(session *models.TrainingSession, now time.Time) bool {
	first := session.Combatants[session.ParticipantIDs[0]]
	second := session.Combatants[session.ParticipantIDs[1]]

	switch {
	case first.CurrentHealth <= 0 && second.CurrentHealth <= 0:
		a.markEndedLocked(session, nil, models.EndReasonMutualElimination, now)
		return true
	case first.CurrentHealth <= 0:
		winner := second.ParticipantID
		a.markEndedLocked(session, &winner, models.EndReasonElimination, now)
		return true
	case second.CurrentHealth <= 0:
		winner := first.ParticipantID
		a.markEndedLocked(session, &winner, models.EndReasonElimination, now)
		return true
	}

	if now.Sub(session.StartedAt) >= a.cfg.MaxSessionDuration {
		var winner *string
		// Higher health fraction wins; an exact tie is a draw.
		if ff, sf := first.HealthFraction(), second.HealthFraction(); ff > sf {
			winner = &first.ParticipantID
		} else if sf > ff {
			winner = &second.ParticipantID
		}
		a.markEndedLocked(session, winner, models.EndReasonTimeLimit, now)
		return true
	}
	return false
}

// markEndedLocked flips the status. Exactly one caller ever observes
// the Active→ended transition, so exactly one runs finalize after.
func (a *ArenaService) markEndedLocked(session *models.TrainingSession, winnerID *string, reason string, now time.Time) {
	if reason == models.EndReasonTimeLimit || reason == models.EndReasonExpired {
		session.Status = models.SessionExpired
	} else {
		session.Status = models.SessionCompleted
	}
	session.WinnerID = winnerID
	session.EndReason = reason
	session.EndedAt = now
}

// EndSession is the single finalize path, shared by elimination,
// time-limit, sweeps and administrative cancellation. Idempotent: the
// second call for the same id is a no-op.
func (a *ArenaService) EndSession(sessionID string, winnerID *string, reason string) bool {
	a.mu.Lock()
	session := a.byID[sessionID]
	a.mu.Unlock()
	if session == nil {
		return false // already finalized (or never existed)
	}

	session.Mu.Lock()
	if session.Status != models.SessionActive {
		session.Mu.Unlock()
		return false
	}
	a.markEndedLocked(session, winnerID, reason, a.now())
	session.Mu.Unlock()

	a.finalize(session)
	return true
}

// CancelSession ends a session administratively (no winner).
func (a *ArenaService) CancelSession(sessionID string) bool {
	return a.EndSession(sessionID, nil, models.EndReasonCancelled)
}

// finalize removes the ended session from both indices, releases the
// participants, records metrics and notifies. Transport/archival
// problems are logged, never a gate on state correctness.
func (a *ArenaService) finalize(session *models.TrainingSession) {
	a.mu.Lock()
	delete(a.byID, session.ID)
	for _, pid := range session.ParticipantIDs {
		if a.byParticipant[pid] == session.ID {
			delete(a.byParticipant, pid)
		}
	}
	a.mu.Unlock()

	winner := "none"
	if session.WinnerID != nil {
		winner = *session.WinnerID
	}
	log.Printf("[ARENA] Session %s ended: reason=%s winner=%s actions=%d", session.ID, session.EndReason, winner, len(session.ActionLog))

	if a.recorder != nil {
		a.recorder.RecordSession(session)
	}

	for _, pid := range session.ParticipantIDs {
		a.notifier.Publish(pid, models.Event{
			Type:      "session_end",
			SessionID: session.ID,
			Data: fiberMap{
				"winner_id":  session.WinnerID,
				"end_reason": session.EndReason,
				"duration":   session.EndedAt.Sub(session.StartedAt).Seconds(),
			},
			At: session.EndedAt,
		})
	}

	if a.cfg.ArchiveEnabled {
		go a.archiveActionLog(session)
	}
}

func (a *ArenaService) archiveActionLog(session *models.TrainingSession) {
	payload, err := json.Marshal(session)
	if err != nil {
		log.Printf("⚠️  [ARENA] Failed to marshal session %s for archival: %v", session.ID, err)
		return
	}
	url, err := utils.ArchiveSessionLog(session.ID, payload)
	if err != nil {
		log.Printf("⚠️  [ARENA] Archival failed for session %s: %v", session.ID, err)
		return
	}
	if setter, ok := a.recorder.(interface{ SetArchiveURL(sessionID, url string) }); ok {
		setter.SetArchiveURL(session.ID, url)
	}
	log.Printf("[ARENA] Session %s action log archived at %s", session.ID, url)
}

// SweepExpired force-terminates sessions past the time budget (plus a
// grace window) and sessions gone idle. Claims run through the same
// per-session lock as live submissions, so a swept session is never
// mutated mid-resolution.
func (a *ArenaService) SweepExpired(now time.Time) int {
	a.mu.Lock()
	candidates := make([]*models.TrainingSession, 0, len(a.byID))
	for _, s := range a.byID {
		candidates = append(candidates, s)
	}
	a.mu.Unlock()

	swept := 0
	for _, session := range candidates {
		session.Mu.Lock()
		if session.Status != models.SessionActive {
			session.Mu.Unlock()
			continue
		}
		overdue := now.Sub(session.StartedAt) > a.cfg.MaxSessionDuration+a.cfg.SessionGrace
		lastActive := session.LastActionAt
		if lastActive.IsZero() {
			lastActive = session.StartedAt
		}
		stale := now.Sub(lastActive) > a.cfg.IdleTimeout
		if !overdue && !stale {
			session.Mu.Unlock()
			continue
		}
		a.markEndedLocked(session, nil, models.EndReasonExpired, now)
		session.Mu.Unlock()

		a.finalize(session)
		swept++
	}
	if swept > 0 {
		log.Printf("[SWEEP] Expired %d stale session(s)", swept)
	}
	return swept
}

// Snapshot returns a copy of the participant's current session state
// for the read-only session endpoint.
func (a *ArenaService) Snapshot(participantID string) (*SessionSnapshot, error) {
	a.mu.Lock()
	sessionID, ok := a.byParticipant[participantID]
	session := a.byID[sessionID]
	a.mu.Unlock()
	if !ok || session == nil {
		return nil, models.ErrNoActiveSession
	}

	session.Mu.Lock()
	defer session.Mu.Unlock()

	snap := &SessionSnapshot{
		SessionID:  session.ID,
		OpponentID: session.Opponent(participantID),
		Status:     session.Status,
		StartedAt:  session.StartedAt,
		Round:      len(session.ActionLog),
		Elapsed:    a.now().Sub(session.StartedAt).Seconds(),
		Combatants: make(map[string]CombatantSnapshot, len(session.Combatants)),
	}
	for pid, c := range session.Combatants {
		snap.Combatants[pid] = CombatantSnapshot{
			CurrentHealth:    c.CurrentHealth,
			MaxHealth:        c.MaxHealth,
			ExperienceGained: c.ExperienceGained,
		}
	}
	return snap, nil
}

type SessionSnapshot struct {
	SessionID  string                       `json:"session_id"`
	OpponentID string                       `json:"opponent_id"`
	Status     models.SessionStatus         `json:"status"`
	StartedAt  time.Time                    `json:"started_at"`
	Round      int                          `json:"round"`
	Elapsed    float64                      `json:"elapsed_seconds"`
	Combatants map[string]CombatantSnapshot `json:"combatants"`
}

type CombatantSnapshot struct {
	CurrentHealth    int `json:"current_health"`
	MaxHealth        int `json:"max_health"`
	ExperienceGained int `json:"experience_gained"`
}
