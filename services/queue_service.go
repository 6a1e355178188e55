// services/queue_service.go
package services

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"training-arena-system/config"
	"training-arena-system/models"
)

// SessionCreator is what the queue needs from the session supervisor:
// the one-active-session check and the session-create step of a match.
type SessionCreator interface {
	HasActiveSession(participantID string) bool
	CreateSession(firstID, secondID string, prefs models.Preferences) (*models.TrainingSession, error)
}

// SkillSource resolves a participant's current skill level for
// queueing (profile-backed, provider fallback).
type SkillSource interface {
	SkillLevelFor(participantID string) int
}

// MatchRecorder bumps the global matches-made counter when a pairing
// produces a session. Optional; nil disables the counter.
type MatchRecorder interface {
	RecordMatch()
}

// RequestOutcome is what requestSession returns: either a match or a
// queued status with wait estimate and position.
type RequestOutcome struct {
	Matched             bool   `json:"matched"`
	SessionID           string `json:"session_id,omitempty"`
	OpponentID          string `json:"opponent,omitempty"`
	WaitEstimateSeconds int    `json:"wait_estimate_seconds,omitempty"`
	QueuePosition       int    `json:"queue_position,omitempty"`
}

// QueueService holds pending requests and pairs compatible
// participants. All queue mutation happens under one mutex; the
// remove-both-then-create-session step of a match is treated as a
// single logical step with rollback.
type QueueService struct {
	cfg      *config.Config
	sessions SessionCreator
	skills   SkillSource
	consent  ConsentChecker
	notifier Notifier
	matches  MatchRecorder

	mu      sync.Mutex
	entries map[string]*models.QueueEntry

	now func() time.Time
}

func NewQueueService(cfg *config.Config, sessions SessionCreator, skills SkillSource, consent ConsentChecker, notifier Notifier, matches MatchRecorder) *QueueService {
	return &QueueService{
		cfg:      cfg,
		sessions: sessions,
		skills:   skills,
		consent:  consent,
		notifier: notifier,
		matches:  matches,
		entries:  make(map[string]*models.QueueEntry),
		now:      time.Now,
	}
}

// RequestSession enqueues the participant and immediately attempts a
// match against everyone already queued. Enqueue and partner selection
// happen under a single lock acquisition: releasing the lock between
// the two would let a concurrent requester claim this entry and leave
// this call matching with a pointer no longer in the queue.
func (q *QueueService) RequestSession(participantID string, prefs models.Preferences) (*RequestOutcome, error) {
	if q.cfg.EnforceConsent && !q.consent.HasTrainingConsent(participantID) {
		return nil, models.ErrConsentRequired
	}

	normalized := prefs.Normalized()
	if normalized.Mode == "" || len(normalized.ActivityTypes) == 0 {
		return nil, fmt.Errorf("%w: mode and at least one activity type required", models.ErrInvalidAction)
	}

	skill := q.skills.SkillLevelFor(participantID)

	q.mu.Lock()
	if _, queued := q.entries[participantID]; queued {
		q.mu.Unlock()
		return nil, models.ErrAlreadyQueued
	}
	if q.sessions.HasActiveSession(participantID) {
		q.mu.Unlock()
		return nil, models.ErrAlreadyInSession
	}
	entry := &models.QueueEntry{
		ParticipantID: participantID,
		Preferences:   normalized,
		SkillLevel:    skill,
		QueuedAt:      q.now(),
	}
	q.entries[participantID] = entry

	partner := q.bestPartnerLocked(entry)
	if partner == nil {
		position := q.positionLocked(participantID)
		estimate := q.waitEstimateLocked(position)
		q.mu.Unlock()
		log.Printf("[QUEUE] Participant %s queued (skill=%d, mode=%s)", participantID, skill, normalized.Mode)
		return &RequestOutcome{
			Matched:             false,
			WaitEstimateSeconds: estimate,
			QueuePosition:       position,
		}, nil
	}
	// Claim both atomically before leaving the lock.
	delete(q.entries, entry.ParticipantID)
	delete(q.entries, partner.ParticipantID)
	q.mu.Unlock()

	return q.completeMatch(entry, partner)
}

// completeMatch turns two claimed entries into a session. Both entries
// are already out of the queue, so nobody else can match them while the
// session is created; if creation fails they are restored with their
// original queue times.
func (q *QueueService) completeMatch(entry, partner *models.QueueEntry) (*RequestOutcome, error) {
	merged := entry.Preferences.Merged(partner.Preferences)
	session, err := q.sessions.CreateSession(entry.ParticipantID, partner.ParticipantID, merged)
	if err != nil {
		log.Printf("⚠️  [QUEUE] Session creation failed for %s vs %s, rolling back: %v", entry.ParticipantID, partner.ParticipantID, err)

		q.mu.Lock()
		q.restoreLocked(partner)
		restored := q.restoreLocked(entry)
		position := q.positionLocked(entry.ParticipantID)
		estimate := q.waitEstimateLocked(position)
		q.mu.Unlock()

		if !restored {
			return nil, models.ErrAlreadyInSession
		}
		return &RequestOutcome{
			Matched:             false,
			WaitEstimateSeconds: estimate,
			QueuePosition:       position,
		}, nil
	}

	log.Printf("[QUEUE] MATCH: %s vs %s → session %s", entry.ParticipantID, partner.ParticipantID, session.ID)
	if q.matches != nil {
		q.matches.RecordMatch()
	}
	q.notifyQueuePositions()

	return &RequestOutcome{
		Matched:    true,
		SessionID:  session.ID,
		OpponentID: partner.ParticipantID,
	}, nil
}

// restoreLocked re-inserts an entry claimed for a failed match. A
// participant who picked up an active session in the meantime stays
// out: a queued participant must never also hold a session.
func (q *QueueService) restoreLocked(entry *models.QueueEntry) bool {
	if q.sessions.HasActiveSession(entry.ParticipantID) {
		log.Printf("⚠️  [QUEUE] Not restoring %s after failed match: already in a session", entry.ParticipantID)
		return false
	}
	q.entries[entry.ParticipantID] = entry
	return true
}

// bestPartnerLocked implements the compatibility predicate and match
// score. Lower score wins; ties break on earliest queue time.
func (q *QueueService) bestPartnerLocked(entry *models.QueueEntry) *models.QueueEntry {
	var best *models.QueueEntry
	var bestScore float64

	for _, other := range q.entries {
		if other.ParticipantID == entry.ParticipantID {
			continue
		}
		if !q.compatible(entry, other) {
			continue
		}
		score := MatchScore(entry, other)
		if best == nil || score < bestScore ||
			(score == bestScore && other.QueuedAt.Before(best.QueuedAt)) {
			best = other
			bestScore = score
		}
	}
	return best
}

func (q *QueueService) compatible(a, b *models.QueueEntry) bool {
	if abs(a.SkillLevel-b.SkillLevel) > q.cfg.MaxSkillGap {
		return false
	}
	if a.Preferences.Mode != b.Preferences.Mode {
		return false
	}
	return a.Preferences.SharesActivityType(b.Preferences)
}

// MatchScore ranks a candidate pairing: 10 points per level of skill
// difference plus the seconds between the two queue times.
func MatchScore(a, b *models.QueueEntry) float64 {
	return 10*float64(abs(a.SkillLevel-b.SkillLevel)) + math.Abs(a.QueuedAt.Sub(b.QueuedAt).Seconds())
}

// CancelRequest removes the participant's entry. Idempotent.
func (q *QueueService) CancelRequest(participantID string) bool {
	q.mu.Lock()
	_, queued := q.entries[participantID]
	delete(q.entries, participantID)
	q.mu.Unlock()

	if queued {
		log.Printf("[QUEUE] Participant %s left the queue", participantID)
		q.notifyQueuePositions()
	}
	return queued
}

// Position returns the participant's 1-based queue position, or 0 when
// not queued.
func (q *QueueService) Position(participantID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.positionLocked(participantID)
}

func (q *QueueService) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func (q *QueueService) positionLocked(participantID string) int {
	entry, ok := q.entries[participantID]
	if !ok {
		return 0
	}
	position := 1
	for _, other := range q.entries {
		if other.ParticipantID == participantID {
			continue
		}
		if other.QueuedAt.Before(entry.QueuedAt) {
			position++
		}
	}
	return position
}

// waitEstimateLocked: max(30, 15×len) − 10×position, floored at the
// configured base.
func (q *QueueService) waitEstimateLocked(position int) int {
	base := 15 * len(q.entries)
	if base < q.cfg.BaseWaitSeconds {
		base = q.cfg.BaseWaitSeconds
	}
	estimate := base - 10*position
	if estimate < q.cfg.BaseWaitSeconds {
		estimate = q.cfg.BaseWaitSeconds
	}
	return estimate
}

// SweepExpired drops entries older than the max queue wait and tells
// the affected participants.
func (q *QueueService) SweepExpired(now time.Time) int {
	q.mu.Lock()
	var expired []*models.QueueEntry
	for id, entry := range q.entries {
		if now.Sub(entry.QueuedAt) > q.cfg.MaxQueueWait {
			expired = append(expired, entry)
			delete(q.entries, id)
		}
	}
	q.mu.Unlock()

	for _, entry := range expired {
		q.notifier.Publish(entry.ParticipantID, models.Event{
			Type: "queue_expired",
			Data: fiberMap{"queued_at": entry.QueuedAt},
			At:   now,
		})
	}
	if len(expired) > 0 {
		log.Printf("[SWEEP] Dropped %d expired queue entrie(s)", len(expired))
		q.notifyQueuePositions()
	}
	return len(expired)
}

// notifyQueuePositions pushes fresh position/estimate to everyone
// still waiting, oldest first.
func (q *QueueService) notifyQueuePositions() {
	q.mu.Lock()
	waiting := make([]*models.QueueEntry, 0, len(q.entries))
	for _, entry := range q.entries {
		waiting = append(waiting, entry)
	}
	sort.Slice(waiting, func(i, j int) bool { return waiting[i].QueuedAt.Before(waiting[j].QueuedAt) })
	type update struct {
		id       string
		position int
		estimate int
	}
	updates := make([]update, 0, len(waiting))
	for i := range waiting {
		updates = append(updates, update{
			id:       waiting[i].ParticipantID,
			position: i + 1,
			estimate: q.waitEstimateLocked(i + 1),
		})
	}
	q.mu.Unlock()

	now := q.now()
	for _, u := range updates {
		q.notifier.Publish(u.id, models.Event{
			Type: "queue_update",
			Data: fiberMap{
				"queue_position":        u.position,
				"wait_estimate_seconds": u.estimate,
			},
			At: now,
		})
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
