package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. WORDSRS_DB_DSN
const EnvPrefix = "WORDSRS"

// Config is the configuration of every wordsrs command
type Config struct {
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// DSN points to the database. Empty means <data_dir>/wordsrs.db for sqlite
	DSN string
	// DataDir holds the sqlite file and exported backups
	DataDir string

	TelegramToken string
	AdminIDs      []int64

	// RedisURL stores day states in Redis. Empty keeps them in memory
	RedisURL string
	// HTTPAddr is where the status API listens
	HTTPAddr string

	ReminderStartHour int
	ReminderEndHour   int

	MaxInterval int
	InitialEase float64

	FlushAttempts     int
	FlushBackoff      time.Duration
	QuizQuestionCount int
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Driver:            "sqlite",
		DataDir:           "data",
		HTTPAddr:          ":8080",
		ReminderStartHour: 8,
		ReminderEndHour:   22,
		MaxInterval:       365,
		InitialEase:       2.5,
		FlushAttempts:     3,
		FlushBackoff:      200 * time.Millisecond,
		QuizQuestionCount: 10,
	}
}

// Load reads .env (if present), the optional config file and WORDSRS_*
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	cfg := &Config{
		Driver:            v.GetString("db.driver"),
		DSN:               v.GetString("db.dsn"),
		DataDir:           v.GetString("data_dir"),
		TelegramToken:     v.GetString("telegram.token"),
		RedisURL:          v.GetString("redis.url"),
		HTTPAddr:          v.GetString("http.addr"),
		ReminderStartHour: v.GetInt("reminder.start_hour"),
		ReminderEndHour:   v.GetInt("reminder.end_hour"),
		MaxInterval:       v.GetInt("sm2.max_interval"),
		InitialEase:       v.GetFloat64("sm2.initial_ease"),
		FlushAttempts:     v.GetInt("session.flush_attempts"),
		FlushBackoff:      v.GetDuration("session.flush_backoff"),
		QuizQuestionCount: v.GetInt("quiz.question_count"),
	}

	// Keep the variable names the bot has always used
	if cfg.TelegramToken == "" {
		cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	adminIDs := v.GetString("telegram.admin_ids")
	if adminIDs == "" {
		adminIDs = os.Getenv("ADMIN_USER_IDS")
	}
	ids, err := ParseAdminIDs(adminIDs)
	if err != nil {
		return nil, err
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("db.driver", d.Driver)
	v.SetDefault("db.dsn", d.DSN)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_ids", "")
	v.SetDefault("redis.url", "")
	v.SetDefault("http.addr", d.HTTPAddr)
	v.SetDefault("reminder.start_hour", d.ReminderStartHour)
	v.SetDefault("reminder.end_hour", d.ReminderEndHour)
	v.SetDefault("sm2.max_interval", d.MaxInterval)
	v.SetDefault("sm2.initial_ease", d.InitialEase)
	v.SetDefault("session.flush_attempts", d.FlushAttempts)
	v.SetDefault("session.flush_backoff", d.FlushBackoff)
	v.SetDefault("quiz.question_count", d.QuizQuestionCount)
}

// ParseAdminIDs parses a comma separated list of Telegram user ids
func ParseAdminIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid admin user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate checks ranges and fills the sqlite DSN from the data directory
func (c *Config) Validate() error {
	switch c.Driver {
	case "", "sqlite", "sqlite3":
		c.Driver = "sqlite"
	case "postgres", "postgresql":
		c.Driver = "postgres"
		if c.DSN == "" {
			return errors.New("db.dsn is required for postgres")
		}
	default:
		return errors.Errorf("unsupported database driver %q", c.Driver)
	}

	if c.ReminderStartHour < 0 || c.ReminderEndHour > 23 || c.ReminderStartHour > c.ReminderEndHour {
		return errors.Errorf("invalid reminder hours %d-%d", c.ReminderStartHour, c.ReminderEndHour)
	}
	if c.MaxInterval < 1 {
		return errors.Errorf("sm2.max_interval must be positive, got %d", c.MaxInterval)
	}
	if c.InitialEase < 1.3 {
		return errors.Errorf("sm2.initial_ease must be at least 1.3, got %v", c.InitialEase)
	}
	if c.FlushAttempts < 1 {
		c.FlushAttempts = 1
	}
	if c.QuizQuestionCount < 0 {
		c.QuizQuestionCount = 0
	}

	if c.Driver == "sqlite" && c.DSN == "" {
		c.DSN = filepath.Join(c.DataDir, "wordsrs.db")
	}
	return nil
}

// IsAdmin reports whether id is listed in AdminIDs
func (c *Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}
