package models

// WordSource tells whether a word was authored by the learner or shipped with a shared list
type WordSource string

const (
	SourceUser    WordSource = "user"
	SourceBuiltin WordSource = "builtin"
)

// Definition is one (part-of-speech, meaning) pair of a word
type Definition struct {
	PartOfSpeech string `json:"pos"`
	Meaning      string `json:"meaning"`
}

// Word represents a vocabulary entry to be learned
type Word struct {
	ID                 string       `json:"id"`
	Text               string       `json:"word"`
	Phonetic           string       `json:"phonetic,omitempty"`
	Audio              string       `json:"audio,omitempty"` // Optional: URL or file name of the pronunciation
	Definitions        []Definition `json:"definitions"`
	Example            string       `json:"example,omitempty"`
	ExampleTranslation string       `json:"example_cn,omitempty"`
	Tags               []string     `json:"tags"`
	Source             WordSource   `json:"source"`
	ListID             string       `json:"list_id,omitempty"`
}

// FirstMeaning returns the meaning of the first definition, or "" when the word has none
func (w Word) FirstMeaning() string {
	if len(w.Definitions) == 0 {
		return ""
	}
	return w.Definitions[0].Meaning
}
