package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration, loaded from environment variables
// with sensible defaults for local development.
type Config struct {
	Port   string
	Env    string
	Season string

	// Cache refresh behavior
	InjuryRefreshInterval time.Duration
	GamesRefreshInterval  time.Duration
	GameLogTTL            time.Duration

	// Upstream call behavior
	UpstreamTimeout time.Duration
	UpstreamDelay   time.Duration // minimum spacing between per-entity stat calls

	// Analysis thresholds
	MaxPropsPerBatch int
	LockConfidence   int
	LockMinGames     int
	GoodConfidence   int

	// Notifications
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	NotifyInterval  time.Duration

	LogLevel string
}

// Load reads configuration from the environment via viper.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("SEASON", "2024-25")

	v.SetDefault("INJURY_REFRESH_INTERVAL", 30*time.Second)
	v.SetDefault("GAMES_REFRESH_INTERVAL", 10*time.Second)
	v.SetDefault("GAME_LOG_TTL", 5*time.Minute)

	v.SetDefault("UPSTREAM_TIMEOUT", 10*time.Second)
	v.SetDefault("UPSTREAM_DELAY", 600*time.Millisecond)

	v.SetDefault("MAX_PROPS_PER_BATCH", 15)
	v.SetDefault("LOCK_CONFIDENCE", 85)
	v.SetDefault("LOCK_MIN_GAMES", 15)
	v.SetDefault("GOOD_CONFIDENCE", 75)

	v.SetDefault("VAPID_PUBLIC_KEY", "")
	v.SetDefault("VAPID_PRIVATE_KEY", "")
	v.SetDefault("VAPID_SUBJECT", "mailto:alerts@propedge.local")
	v.SetDefault("NOTIFY_INTERVAL", 60*time.Second)

	v.SetDefault("LOG_LEVEL", "")

	cfg := &Config{
		Port:   v.GetString("PORT"),
		Env:    v.GetString("ENV"),
		Season: v.GetString("SEASON"),

		InjuryRefreshInterval: v.GetDuration("INJURY_REFRESH_INTERVAL"),
		GamesRefreshInterval:  v.GetDuration("GAMES_REFRESH_INTERVAL"),
		GameLogTTL:            v.GetDuration("GAME_LOG_TTL"),

		UpstreamTimeout: v.GetDuration("UPSTREAM_TIMEOUT"),
		UpstreamDelay:   v.GetDuration("UPSTREAM_DELAY"),

		MaxPropsPerBatch: v.GetInt("MAX_PROPS_PER_BATCH"),
		LockConfidence:   v.GetInt("LOCK_CONFIDENCE"),
		LockMinGames:     v.GetInt("LOCK_MIN_GAMES"),
		GoodConfidence:   v.GetInt("GOOD_CONFIDENCE"),

		VAPIDPublicKey:  v.GetString("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: v.GetString("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    v.GetString("VAPID_SUBJECT"),
		NotifyInterval:  v.GetDuration("NOTIFY_INTERVAL"),

		LogLevel: v.GetString("LOG_LEVEL"),
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}
