package models

import "time"

// QuizMode is the kind of questions a quiz run used
type QuizMode string

const (
	QuizMultipleChoice QuizMode = "mcq"
	QuizSpelling       QuizMode = "spelling"
)

// QuizResult summarises one completed quiz run
type QuizResult struct {
	ID              string    `json:"id"`
	Date            time.Time `json:"date"`
	Mode            QuizMode  `json:"mode"`
	TotalQuestions  int       `json:"totalQuestions"`
	CorrectCount    int       `json:"correctCount"`
	WrongWordIDs    []string  `json:"wrongWordIds"`
	DurationSeconds int       `json:"durationSeconds"`
}
