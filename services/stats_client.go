// training-arena-system/services/stats_client.go
package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"training-arena-system/models"
)

// StatProvider supplies the base combat stats a combatant starts a
// session with. The HTTP client below is the production
// implementation; tests substitute a stub.
type StatProvider interface {
	GetCombatStats(participantID string) models.CombatStats
}

// StatsClient talks to the external player stat service. Any failure
// falls back to defaults — training never blocks on the stat service.
type StatsClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewStatsClient(baseURL, token string) *StatsClient {
	return &StatsClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetCombatStats calls /combat-stats on the stat service. Defaults are
// supplied if the participant is unknown, the service errors, or no
// service is configured at all.
func (c *StatsClient) GetCombatStats(participantID string) models.CombatStats {
	defaults := models.DefaultCombatStats()
	if c == nil || c.BaseURL == "" {
		return defaults
	}

	url := fmt.Sprintf("%s/api/v1/participants/%s/combat-stats", c.BaseURL, participantID)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return defaults
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Printf("StatsService unreachable for %s, using defaults: %v", participantID, err)
		return defaults
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("StatsService returned %d for %s, using defaults", resp.StatusCode, participantID)
		return defaults
	}

	var stats models.CombatStats
	if err := json.Unmarshal(body, &stats); err != nil {
		log.Printf("StatsService bad payload for %s, using defaults: %v", participantID, err)
		return defaults
	}

	// Backfill anything the provider left zero.
	if stats.MaxHealth <= 0 {
		stats.MaxHealth = defaults.MaxHealth
	}
	if stats.Attack <= 0 {
		stats.Attack = defaults.Attack
	}
	if stats.Defense <= 0 {
		stats.Defense = defaults.Defense
	}
	if stats.Accuracy <= 0 {
		stats.Accuracy = defaults.Accuracy
	}
	if stats.Evasion <= 0 {
		stats.Evasion = defaults.Evasion
	}
	if stats.Speed <= 0 {
		stats.Speed = defaults.Speed
	}
	if stats.Level <= 0 {
		stats.Level = defaults.Level
	}
	return stats
}
