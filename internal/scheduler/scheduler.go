package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/wordsrs/internal/metrics"
	"github.com/example/wordsrs/pkg/models"
)

// Default notification window
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// Config controls when reminders go out
type Config struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// DefaultConfig returns the default reminder window in local time
func DefaultConfig() Config {
	return Config{
		StartHour: DefaultNotificationStartHour,
		EndHour:   DefaultNotificationEndHour,
		Location:  time.Local,
	}
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(userID int64, count int) error
}

// UserSource lists users who want a reminder at an hour
type UserSource interface {
	GetUsersForNotification(ctx context.Context, hour int) ([]models.User, error)
}

// DueCounter returns how many review cards a user will be shown today
type DueCounter func(ctx context.Context, userID int64) (int, error)

// Pruner drops day states of past days
type Pruner interface {
	Prune(keepDate string) int
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	notifier  Notifier
	users     UserSource
	due       DueCounter
	pruner    Pruner
	now       func() time.Time
}

// New creates a new scheduler instance
func New(cfg Config, notifier Notifier, users UserSource, due DueCounter) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(cfg.Location),
		cfg:       cfg,
		notifier:  notifier,
		users:     users,
		due:       due,
		now:       time.Now,
	}
}

// WithPruner enables the nightly day-state cleanup
func (s *Scheduler) WithPruner(p Pruner) *Scheduler {
	s.pruner = p
	return s
}

// WithClock replaces the clock used to pick the reminder hour
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	// Schedule hourly check for users who need notifications
	if _, err := s.scheduler.Every(1).Hour().StartAt(nextHour(s.now().In(s.cfg.Location))).Do(func() {
		s.RunReminders(context.Background())
	}); err != nil {
		return err
	}

	if s.pruner != nil {
		if _, err := s.scheduler.Every(1).Day().At("00:05").Do(s.pruneDayStates); err != nil {
			return err
		}
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunReminders sends a reminder to every user whose notification hour is now
// and who has cards to review. It returns the number of reminders sent.
func (s *Scheduler) RunReminders(ctx context.Context) int {
	currentHour := s.now().In(s.cfg.Location).Hour()

	if currentHour < s.cfg.StartHour || currentHour > s.cfg.EndHour {
		log.Printf("Current hour %d is outside notification hours (%d-%d), skipping reminders",
			currentHour, s.cfg.StartHour, s.cfg.EndHour)
		return 0
	}

	// Get users who should receive notifications at the current hour
	users, err := s.users.GetUsersForNotification(ctx, currentHour)
	if err != nil {
		log.Printf("Error getting users for notification: %v", err)
		return 0
	}

	sent := 0
	for _, user := range users {
		count, err := s.due(ctx, user.ID)
		if err != nil {
			log.Printf("Error getting due cards for user %d: %v", user.ID, err)
			continue
		}
		if count == 0 {
			continue
		}

		err = s.notifier.SendReminders(user.ID, count)
		metrics.RecordReminder(err)
		if err != nil {
			log.Printf("Error sending reminder to user %d: %v", user.ID, err)
			continue
		}
		sent++
	}
	return sent
}

// RunManualCheck sends the reminder of one user right away. It returns the
// number of due cards; nothing is sent when there are none.
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) (int, error) {
	count, err := s.due(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		err = s.notifier.SendReminders(userID, count)
		metrics.RecordReminder(err)
	}
	return count, err
}

func (s *Scheduler) pruneDayStates() {
	today := models.DateOf(s.now().In(s.cfg.Location))
	if n := s.pruner.Prune(today); n > 0 {
		log.Printf("Removed %d day states older than %s", n, today)
	}
}

func nextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}
