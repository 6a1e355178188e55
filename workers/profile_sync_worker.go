// workers/profile_sync_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"training-arena-system/models"
	"training-arena-system/utils"

	"gorm.io/gorm"
)

// ProfileSyncWorker pushes skill profiles updated since the last push
// to the external profile service, so the rest of the platform sees
// training progress without querying this service directly.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/internal/skill-profiles"
	serviceToken string
	httpClient   *http.Client

	lastPush time.Time
}

func NewProfileSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Skill Profile Sync Worker (skill_profiles → profile service)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial push (backfill) - everything ever recorded
	if err := w.pushBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile push failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.pushBatch(ctx, w.lastPush); err != nil {
				log.Printf("❌ Profile push failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Skill Profile Sync Worker stopped")
			return
		}
	}
}

// pushBatch sends every profile updated since the cursor. The cursor
// only advances on success, so a failed push retries the same batch.
func (w *ProfileSyncWorker) pushBatch(ctx context.Context, since time.Time) error {
	cutoff := time.Now()

	var profiles []models.SkillProfile
	if err := w.db.Where("updated_at > ?", since.UTC()).Find(&profiles).Error; err != nil {
		return fmt.Errorf("failed to load changed profiles: %w", err)
	}
	if len(profiles) == 0 {
		w.lastPush = cutoff
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"profiles": profiles,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	url := fmt.Sprintf("%s%s", w.baseURL, w.endpointPath)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	w.lastPush = cutoff
	log.Printf("✅ Pushed %d updated skill profile(s)", len(profiles))
	return nil
}
