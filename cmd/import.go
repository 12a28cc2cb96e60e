package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/excel"
	"github.com/example/wordsrs/pkg/models"
)

var (
	importUser  int64
	importFile  string
	importList  string
	importSheet string
	importStart int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import words from a .xlsx or .csv file",
	Long: `Import words for one user (--user) or into a shared word list (--list).
Columns: word, part of speech, meaning, example, tags, phonetic.
Several meanings are separated by ';'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (importUser == 0) == (importList == "") {
			return fmt.Errorf("give either --user or --list")
		}

		cfg, err := setup()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		var store excel.WordStore
		if importList != "" {
			list := &models.WordList{Name: importList}
			if err := database.NewWordListRepository().Create(ctx, list); err != nil {
				return fmt.Errorf("failed to create word list: %w", err)
			}
			store = database.NewListStore(list.ID)
		} else {
			store = database.NewUserStore(importUser)
		}

		config := excel.DefaultImportConfig()
		config.FilePath = importFile
		config.StartRow = importStart
		// empty means the first sheet
		config.SheetName = importSheet

		importer := excel.NewImporter(store, newModel(cfg)).WithClock(time.Now)
		result, err := importer.ImportWords(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", importFile, err)
		}

		fmt.Printf("✅ Processed %d rows: %d added, %d updated, %d skipped\n",
			result.TotalProcessed, result.Created, result.Updated, result.Skipped)
		for _, e := range result.Errors {
			fmt.Println("  ⚠️", e)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Int64Var(&importUser, "user", 0, "Telegram user id to import for")
	importCmd.Flags().StringVar(&importList, "list", "", "shared word list to fill, created when missing")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "file to import")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name, the first sheet by default")
	importCmd.Flags().IntVar(&importStart, "start-row", 2, "first row with data")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
