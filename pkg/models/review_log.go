package models

import "time"

// ReviewMode tells which flow produced a review log
type ReviewMode string

const (
	ModeReview ReviewMode = "review"
	ModeQuiz   ReviewMode = "quiz"
)

// ReviewLog is an append-only record of a single rating event
type ReviewLog struct {
	ID               string     `json:"id"`
	WordID           string     `json:"wordId"`
	Quality          int        `json:"quality"`
	ReviewedAt       time.Time  `json:"reviewDate"`
	PreviousInterval int        `json:"previousInterval"`
	NewInterval      int        `json:"newInterval"`
	PreviousEF       float64    `json:"previousEF"`
	NewEF            float64    `json:"newEF"`
	Mode             ReviewMode `json:"mode"`
}
