package bot

import (
	"time"

	"github.com/example/wordsrs/internal/session"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	Token string
	// Users allowed to run /admin_stats
	AdminUserIDs []int64
	// Retry and quiz settings of every study session
	Session session.Config
	// Number of days shown in the statistics
	StatsDays int
	// Sessions untouched for this long are closed
	SessionIdleTimeout time.Duration
	// Largest upload accepted for imports and restores
	MaxUploadBytes int64
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	cfg := session.DefaultConfig()
	cfg.QuizQuestionCount = 10
	return &BotConfig{
		Session:            cfg,
		StatsDays:          7,
		SessionIdleTimeout: time.Hour * 2,
		MaxUploadBytes:     10 << 20,
	}
}
