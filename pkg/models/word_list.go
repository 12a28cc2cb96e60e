package models

// WordList is a shared, named collection of builtin words a user can enable
type WordList struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	WordCount   int    `json:"wordCount"`
}
