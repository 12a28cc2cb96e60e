package models

// UserSettings holds the daily limits and the enabled word lists of a user
type UserSettings struct {
	DailyNewCardLimit int      `json:"dailyNewCardLimit"`
	DailyReviewLimit  int      `json:"dailyReviewLimit"`
	EnabledListIDs    []string `json:"enabledListIds"`
}

// DefaultSettings returns the settings used when a user never saved any
func DefaultSettings() UserSettings {
	return UserSettings{
		DailyNewCardLimit: 20,
		DailyReviewLimit:  100,
		EnabledListIDs:    []string{},
	}
}
