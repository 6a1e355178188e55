// config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config collects every tunable the arena needs at construction time.
// Nothing in services/ reads the environment directly — everything
// flows through here so tests can build a Config by hand.
type Config struct {
	Port           string
	DatabaseURL    string
	AllowedOrigins string

	// Gateway / external collaborators
	ServiceToken      string // shared token validated by the gateway middleware
	StatsServiceURL   string // player stat provider
	ConsentServiceURL string // consent check service
	ProfileSyncURL    string // where updated skill profiles get pushed

	// Matchmaking
	EnforceConsent  bool
	MaxSkillGap     int           // max |skill difference| considered compatible
	MaxQueueWait    time.Duration // queue entries older than this are swept
	BaseWaitSeconds int           // floor for the wait estimate

	// Sessions
	MaxActiveSessions  int
	ActionCooldown     time.Duration
	MaxSessionDuration time.Duration
	SessionGrace       time.Duration // extra slack before the sweeper force-expires
	IdleTimeout        time.Duration // no accepted action for this long → stale

	SweepInterval time.Duration

	// Action-log archival (R2)
	ArchiveEnabled bool
	ArchiveBucket  string
	ArchiveAccount string
	ArchiveKeyID   string
	ArchiveSecret  string
	ArchiveCDNBase string

	Combat CombatConfig
}

// CombatConfig tunes the resolution engine. Defaults keep training
// bouts short: raw stats are heavily discounted.
type CombatConfig struct {
	DamageScale     float64 // discount applied to raw attack stat
	ExperienceScale float64 // XP per point of damage dealt

	CritChance      float64
	CritMultiplier  float64
	PowerMultiplier float64
	QuickMultiplier float64

	// Accuracy modifiers for flagged attacks
	PowerAccuracyPenalty float64
	QuickAccuracyBonus   float64

	DefendBuffMagnitude float64 // added per Defend, stacking
	DefendBuffRounds    int
	DefenseBuffDecay    float64 // magnitude lost each time the buff absorbs a hit
	DefenseBuffCap      float64 // max damage fraction a buff can absorb

	HealMinFraction float64
	HealMaxFraction float64
}

// DefaultCombatConfig returns the tuning used in production.
func DefaultCombatConfig() CombatConfig {
	return CombatConfig{
		DamageScale:          0.1,
		ExperienceScale:      0.5,
		CritChance:           0.15,
		CritMultiplier:       2.0,
		PowerMultiplier:      1.5,
		QuickMultiplier:      0.8,
		PowerAccuracyPenalty: 0.1,
		QuickAccuracyBonus:   0.05,
		DefendBuffMagnitude:  0.2,
		DefendBuffRounds:     3,
		DefenseBuffDecay:     0.1,
		DefenseBuffCap:       0.8,
		HealMinFraction:      0.15,
		HealMaxFraction:      0.20,
	}
}

// Default returns a Config with production defaults and no external
// endpoints — handy for tests.
func Default() *Config {
	return &Config{
		Port:               "5300",
		EnforceConsent:     false,
		MaxSkillGap:        2,
		MaxQueueWait:       5 * time.Minute,
		BaseWaitSeconds:    30,
		MaxActiveSessions:  100,
		ActionCooldown:     1 * time.Second,
		MaxSessionDuration: 5 * time.Minute,
		SessionGrace:       30 * time.Second,
		IdleTimeout:        2 * time.Minute,
		SweepInterval:      60 * time.Second,
		Combat:             DefaultCombatConfig(),
	}
}

// Load builds the Config from environment variables (godotenv has
// already been loaded by main). Missing critical values are fatal,
// everything else falls back to defaults.
func Load() *Config {
	cfg := Default()

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}
	cfg.AllowedOrigins = getEnv("ALLOWED_ORIGINS", "http://localhost:3000")

	cfg.ServiceToken = os.Getenv("TRAINING_SERVICE_TOKEN")
	if cfg.ServiceToken == "" {
		log.Fatal("TRAINING_SERVICE_TOKEN environment variable not set")
	}
	cfg.StatsServiceURL = os.Getenv("STATS_SERVICE_URL")
	cfg.ConsentServiceURL = os.Getenv("CONSENT_SERVICE_URL")
	cfg.ProfileSyncURL = os.Getenv("PROFILE_SYNC_URL")

	cfg.EnforceConsent = getEnvBool("ENFORCE_TRAINING_CONSENT", cfg.EnforceConsent)
	cfg.MaxActiveSessions = getEnvInt("MAX_ACTIVE_SESSIONS", cfg.MaxActiveSessions)
	cfg.ActionCooldown = getEnvDuration("ACTION_COOLDOWN", cfg.ActionCooldown)
	cfg.MaxSessionDuration = getEnvDuration("MAX_SESSION_DURATION", cfg.MaxSessionDuration)
	cfg.SessionGrace = getEnvDuration("SESSION_GRACE", cfg.SessionGrace)
	cfg.IdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.MaxQueueWait = getEnvDuration("MAX_QUEUE_WAIT", cfg.MaxQueueWait)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", cfg.SweepInterval)

	cfg.ArchiveEnabled = getEnvBool("ARCHIVE_ENABLED", false)
	cfg.ArchiveBucket = os.Getenv("R2_BUCKET_NAME")
	cfg.ArchiveAccount = os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	cfg.ArchiveKeyID = os.Getenv("R2_ACCESS_KEY_ID")
	cfg.ArchiveSecret = os.Getenv("R2_ACCESS_KEY_SECRET")
	cfg.ArchiveCDNBase = os.Getenv("CDN_BASE_URL")

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("⚠️  Invalid bool for %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️  Invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️  Invalid duration for %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
