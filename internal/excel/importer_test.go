package excel

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/wordsrs/internal/database"
	"github.com/example/wordsrs/internal/spaced_repetition"
	"github.com/example/wordsrs/pkg/models"
)

type fakeWordStore struct {
	words  map[string]*models.Word
	states map[string]models.CardState
	nextID int
}

func newFakeWordStore() *fakeWordStore {
	return &fakeWordStore{words: map[string]*models.Word{}, states: map[string]models.CardState{}}
}

func (f *fakeWordStore) FindWordByText(_ context.Context, text string) (*models.Word, error) {
	if w, ok := f.words[strings.ToLower(text)]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeWordStore) AddWord(_ context.Context, word *models.Word, state models.CardState) error {
	f.nextID++
	word.ID = "w" + string(rune('0'+f.nextID))
	state.WordID = word.ID
	cp := *word
	f.words[strings.ToLower(word.Text)] = &cp
	f.states[word.ID] = state
	return nil
}

func (f *fakeWordStore) UpdateWord(_ context.Context, word *models.Word) error {
	cp := *word
	f.words[strings.ToLower(word.Text)] = &cp
	return nil
}

var importDay = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestImporter(store WordStore) *Importer {
	return NewImporter(store, spaced_repetition.NewSM2()).WithClock(func() time.Time { return importDay })
}

func TestImportCSV(t *testing.T) {
	store := newFakeWordStore()
	data := "word,pos,meaning,example,tags\n" +
		"abandon,v.,give up; leave behind,He abandoned the car.,\"cet4, verbs\"\n" +
		",,,,\n" +
		"go (went gone),v.,move,,\n" +
		"orphan,n.,,,\n"

	res, err := newTestImporter(store).ImportCSV(context.Background(), strings.NewReader(data), DefaultImportConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalProcessed)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Row 5")

	w := store.words["abandon"]
	require.NotNil(t, w)
	assert.Equal(t, []models.Definition{
		{PartOfSpeech: "v.", Meaning: "give up"},
		{PartOfSpeech: "v.", Meaning: "leave behind"},
	}, w.Definitions)
	assert.Equal(t, []string{"cet4", "verbs"}, w.Tags)
	assert.Equal(t, "He abandoned the car.", w.Example)
	assert.Equal(t, models.SourceUser, w.Source)

	assert.NotNil(t, store.words["go"])

	st := store.states[w.ID]
	assert.Equal(t, models.StatusNew, st.Status)
	assert.Equal(t, "2025-03-10", st.DueDate)
	assert.Equal(t, 2.5, st.EaseFactor)
}

func TestImportCSV_UpdatesExistingWord(t *testing.T) {
	store := newFakeWordStore()
	im := newTestImporter(store)
	cfg := DefaultImportConfig()

	_, err := im.ImportCSV(context.Background(), strings.NewReader("h\nabandon,v.,give up\n"), cfg)
	require.NoError(t, err)

	res, err := im.ImportCSV(context.Background(), strings.NewReader("h\nAbandon,v.,desert\n"), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, "desert", store.words["abandon"].FirstMeaning())
	assert.Len(t, store.states, 1)
}

func TestImportWords_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"word", "pos", "meaning", "example", "tags", "phonetic"},
		{"benefit", "n.", "advantage", "", "cet4", "/ˈbenɪfɪt/"},
		{"candid", "adj.", "frank", "", "", ""},
	}
	for i, r := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &r))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	store := newFakeWordStore()
	cfg := DefaultImportConfig()
	cfg.FilePath = path

	res, err := newTestImporter(store).ImportWords(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "/ˈbenɪfɪt/", store.words["benefit"].Phonetic)
}

func TestImportText(t *testing.T) {
	store := newFakeWordStore()
	text := "hello - привет\n\nwell-being - welfare; happiness\nnodash\nempty - \n"

	res := newTestImporter(store).ImportText(context.Background(), text)

	assert.Equal(t, 4, res.TotalProcessed)
	assert.Equal(t, 2, res.Created)
	assert.Len(t, res.Errors, 2)
	assert.Equal(t, "привет", store.words["hello"].FirstMeaning())
	require.Contains(t, store.words, "well-being")
	assert.Len(t, store.words["well-being"].Definitions, 2)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 4, columnToIndex("e"))
	assert.Equal(t, 26, columnToIndex("AA"))
}
