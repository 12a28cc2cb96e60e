package models

// StreakData tracks consecutive days of study activity
type StreakData struct {
	CurrentStreak  int      `json:"currentStreak"`
	LongestStreak  int      `json:"longestStreak"`
	LastActiveDate string   `json:"lastActiveDate"`
	ActiveDates    []string `json:"activeDates"`
}
