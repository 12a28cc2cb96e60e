package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/spaced_repetition"
)

var dueUser int64

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show the cards a user will study today",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		store := database.NewUserStore(dueUser)
		settings, err := store.LoadSettings(ctx)
		if err != nil {
			return err
		}

		queue, err := spaced_repetition.NewSelector(store, newModel(cfg)).
			SelectDueCards(ctx, settings.DailyNewCardLimit, settings.DailyReviewLimit, settings.EnabledListIDs)
		if err != nil {
			return err
		}
		if queue.Len() == 0 {
			fmt.Println("✅ No cards due today! Good job.")
			return nil
		}

		cards := queue.All()
		ids := make([]string, 0, len(cards))
		for _, c := range cards {
			ids = append(ids, c.WordID)
		}
		words, err := store.GetWordsByIDs(ctx, ids)
		if err != nil {
			return err
		}

		fmt.Printf("🔥 %d reviews and %d new cards today:\n\n", len(queue.ReviewCards), len(queue.NewCards))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Word\tStatus\tDue\tInterval\tEase\tMeaning")
		fmt.Fprintln(w, "----\t------\t---\t--------\t----\t-------")
		for _, c := range cards {
			word := words[c.WordID]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
				word.Text, c.Status, c.DueDate, spaced_repetition.FormatInterval(c.Interval), c.EaseFactor, word.FirstMeaning())
		}
		return w.Flush()
	},
}

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Show the shared word lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setup(); err != nil {
			return err
		}
		defer database.Close()

		lists, err := database.NewWordListRepository().GetAll(context.Background())
		if err != nil {
			return err
		}
		if len(lists) == 0 {
			fmt.Println("📚 No word lists yet. Create one with: wordsrs import --list NAME --file FILE")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tName\tWords\tDescription")
		fmt.Fprintln(w, "--\t----\t-----\t-----------")
		for _, l := range lists {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", l.ID, l.Name, l.WordCount, l.Description)
		}
		return w.Flush()
	},
}

func init() {
	dueCmd.Flags().Int64Var(&dueUser, "user", 0, "Telegram user id")
	dueCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(dueCmd, listsCmd)
}
