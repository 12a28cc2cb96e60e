package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/wordsrs/internal/backup"
	"github.com/example/wordsrs/internal/database"
)

var (
	backupUser int64
	exportOut  string
	restoreIn  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSON backup of a user's words and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer database.Close()

		now := time.Now()
		env, err := backup.Export(context.Background(), database.NewUserStore(backupUser), now)
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.DataDir, backup.FileName(now))
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}
		defer f.Close()
		if err := backup.Write(f, env); err != nil {
			return fmt.Errorf("failed to export: %w", err)
		}

		fmt.Printf("💾 Saved %d words, %d cards and %d reviews to %s\n",
			len(env.Words), len(env.CardStates), len(env.ReviewLogs), out)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace a user's words and progress with a backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(restoreIn)
		if err != nil {
			return fmt.Errorf("failed to open backup: %w", err)
		}
		defer f.Close()

		env, err := backup.Read(f)
		if err != nil {
			return fmt.Errorf("failed to read backup: %w", err)
		}

		if _, err := setup(); err != nil {
			return err
		}
		defer database.Close()

		if err := backup.Restore(context.Background(), database.NewUserStore(backupUser), env); err != nil {
			return fmt.Errorf("failed to restore: %w", err)
		}
		fmt.Printf("✅ Restored %d words and %d cards for user %d\n", len(env.Words), len(env.CardStates), backupUser)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, restoreCmd} {
		c.Flags().Int64Var(&backupUser, "user", 0, "Telegram user id")
		c.MarkFlagRequired("user")
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file, defaults to a dated file in data_dir")
	restoreCmd.Flags().StringVarP(&restoreIn, "file", "f", "", "backup file to restore")
	restoreCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(exportCmd, restoreCmd)
}
