package models

// CardStatus is the lifecycle status of a card
type CardStatus string

const (
	StatusNew      CardStatus = "new"
	StatusLearning CardStatus = "learning"
	StatusReview   CardStatus = "review"
	StatusMastered CardStatus = "mastered"
	StatusRetired  CardStatus = "retired"
)

// CardState tracks a user's memory strength for a single word using the SM-2 algorithm
type CardState struct {
	WordID               string     `json:"wordId"`
	EaseFactor           float64    `json:"easeFactor"`     // SM-2 EF parameter
	Interval             int        `json:"interval"`       // Current interval in days
	Repetition           int        `json:"repetition"`     // Consecutive successful reviews since the last reset
	DueDate              string     `json:"dueDate"`        // YYYY-MM-DD
	LastReviewDate       string     `json:"lastReviewDate,omitempty"`
	Status               CardStatus `json:"status"`
	ConsecutiveEasyCount int        `json:"consecutiveEasyCount"` // Unbroken run of quality 5 ratings
}

// IsStudied reports whether the card has left the new state
func (c CardState) IsStudied() bool {
	return c.Status != StatusNew
}

// FindCardState filters card states. Empty fields do not filter.
type FindCardState struct {
	WordIDs         []string
	DueOnOrBefore   string
	Statuses        []CardStatus
	ExcludeStatuses []CardStatus
}
