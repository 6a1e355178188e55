package services

import (
	"testing"
	"time"

	"training-arena-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToAllStreams(t *testing.T) {
	hub := NewNotificationHub()
	first, cancelFirst := hub.Subscribe("alice")
	second, cancelSecond := hub.Subscribe("alice")
	defer cancelFirst()
	defer cancelSecond()

	hub.Publish("alice", models.Event{Type: "session_start", At: time.Now()})

	for _, ch := range []chan models.Event{first, second} {
		select {
		case ev := <-ch:
			assert.Equal(t, "session_start", ev.Type)
		default:
			t.Fatal("expected a buffered event")
		}
	}
}

func TestHubPublishToNobodyIsNoop(t *testing.T) {
	hub := NewNotificationHub()
	hub.Publish("ghost", models.Event{Type: "queue_update"}) // must not panic or block
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewNotificationHub()
	ch, cancel := hub.Subscribe("alice")
	cancel()

	hub.Publish("alice", models.Event{Type: "queue_update"})
	select {
	case <-ch:
		t.Fatal("cancelled stream still got an event")
	default:
	}
}

func TestHubFullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewNotificationHub()
	_, cancel := hub.Subscribe("alice")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ { // well past the buffer size
			hub.Publish("alice", models.Event{Type: "action_result"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow consumer")
	}
}

type fakeProfiles struct {
	profile *models.SkillProfile
	err     error
}

func (f *fakeProfiles) GetProfile(string) (*models.SkillProfile, error) {
	return f.profile, f.err
}

func TestSkillResolver(t *testing.T) {
	stats := &fakeStats{byID: map[string]models.CombatStats{"alice": {Level: 7}}}

	cases := []struct {
		name    string
		profile *models.SkillProfile
		err     error
		level   int
	}{
		{"no profile yet", nil, nil, 7},
		{"profile with sessions", &models.SkillProfile{OverallSkill: 0.5, SessionsPlayed: 3}, nil, 6},
		{"empty profile falls through", &models.SkillProfile{}, nil, 7},
		{"lookup error falls through", nil, assert.AnError, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &SkillResolver{
				Profiles: &fakeProfiles{profile: tc.profile, err: tc.err},
				Stats:    stats,
			}
			require.Equal(t, tc.level, resolver.SkillLevelFor("alice"))
		})
	}
}
