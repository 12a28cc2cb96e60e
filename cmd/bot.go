package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/wordsrs/internal/api"
	"github.com/example/wordsrs/internal/bot"
	"github.com/example/wordsrs/internal/config"
	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/scheduler"
	"github.com/example/wordsrs/internal/session"
)

var botWithAPI bool

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot and the reminder scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runBot(ctx, cfg)
	},
}

func init() {
	botCmd.Flags().BoolVar(&botWithAPI, "api", true, "also serve the status API on http.addr")
	rootCmd.AddCommand(botCmd)
}

func runBot(ctx context.Context, cfg *config.Config) error {
	model := newModel(cfg)

	var (
		days   session.DayStateStore
		pruner scheduler.Pruner
	)
	if cfg.RedisURL != "" {
		redisDays, err := session.NewRedisDayStore(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisDays.Close()
		days = redisDays
	} else {
		memoryDays := session.NewMemoryDayStore()
		days, pruner = memoryDays, memoryDays
	}

	botConfig := bot.DefaultConfig()
	botConfig.Token = cfg.TelegramToken
	botConfig.AdminUserIDs = cfg.AdminIDs
	botConfig.Session = sessionConfig(cfg)

	b, err := bot.New(botConfig, model, days)
	if err != nil {
		return err
	}

	due := func(ctx context.Context, userID int64) (int, error) {
		return scheduler.CountDueReviews(ctx, database.NewUserStore(userID), model, time.Now())
	}
	sched := scheduler.New(scheduler.Config{
		StartHour: cfg.ReminderStartHour,
		EndHour:   cfg.ReminderEndHour,
		Location:  time.Local,
	}, b, database.NewUserRepository(), due)
	if pruner != nil {
		sched.WithPruner(pruner)
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()
	b.WithReminders(sched)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Println("Bot started. Press Ctrl+C to stop.")
		return b.Start(gctx)
	})
	if botWithAPI && cfg.HTTPAddr != "" {
		g.Go(func() error {
			return api.New(model, time.Now).Run(gctx, cfg.HTTPAddr)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("Bot stopped successfully")
	return nil
}
