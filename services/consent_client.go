// training-arena-system/services/consent_client.go
package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ConsentChecker answers whether a participant has opted in to
// head-to-head training. Checked before enqueue unless enforcement is
// disabled by configuration.
type ConsentChecker interface {
	HasTrainingConsent(participantID string) bool
}

// ConsentClient calls the external consent service. Errors deny:
// nobody enters the queue on a failed consent lookup.
type ConsentClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewConsentClient(baseURL, token string) *ConsentClient {
	return &ConsentClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *ConsentClient) HasTrainingConsent(participantID string) bool {
	if c == nil || c.BaseURL == "" {
		// No consent service configured — enforcement should be off,
		// but deny rather than guess.
		return false
	}

	url := fmt.Sprintf("%s/api/v1/participants/%s/training-consent", c.BaseURL, participantID)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Printf("ConsentService unreachable for %s, denying: %v", participantID, err)
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("ConsentService returned %d for %s, denying", resp.StatusCode, participantID)
		return false
	}

	var out struct {
		Consented bool `json:"consented"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false
	}
	return out.Consented
}
