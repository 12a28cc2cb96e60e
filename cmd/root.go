package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/wordsrs/internal/config"
	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/session"
	"github.com/example/wordsrs/internal/spaced_repetition"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "wordsrs",
	Short: "A spaced repetition vocabulary trainer",
	Long: `wordsrs schedules vocabulary reviews with an SM-2 variant.
It runs as a Telegram bot, serves a small status API and
manages word files and backups from the command line.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, toml or json)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// setup loads the configuration and connects to the database.
// The caller closes the database.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := database.Connect(cfg.Driver, cfg.DSN); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newModel(cfg *config.Config) *spaced_repetition.SM2 {
	model := spaced_repetition.NewSM2()
	model.MaxInterval = cfg.MaxInterval
	model.InitialEF = cfg.InitialEase
	return model
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		FlushAttempts:     cfg.FlushAttempts,
		FlushBackoff:      cfg.FlushBackoff,
		QuizQuestionCount: cfg.QuizQuestionCount,
	}
}
