package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DayState is the per-user, per-calendar-day study state that survives a
// lost session: whether today's new cards were already shown and which words
// were touched with their worst quality. A new calendar day starts with a
// fresh state.
type DayState struct {
	Date          string         `json:"date"`
	NewCardsShown bool           `json:"newCardsShown"`
	Touched       map[string]int `json:"touched"`
}

// NewDayState returns an empty state for date
func NewDayState(date string) *DayState {
	return &DayState{Date: date, Touched: make(map[string]int)}
}

// Touch records a quality received by a word today, keeping the worst one
func (d *DayState) Touch(wordID string, quality int) {
	if d.Touched == nil {
		d.Touched = make(map[string]int)
	}
	if prev, ok := d.Touched[wordID]; ok && prev <= quality {
		return
	}
	d.Touched[wordID] = quality
}

// TouchedIDs returns the touched word ids in a stable order
func (d *DayState) TouchedIDs() []string {
	ids := make([]string, 0, len(d.Touched))
	for id := range d.Touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Restart forgets everything recorded for the day
func (d *DayState) Restart() {
	d.NewCardsShown = false
	d.Touched = make(map[string]int)
}

// DayStateStore keeps day states between sessions
type DayStateStore interface {
	// Load returns the saved state, or a fresh one when nothing was saved for date
	Load(ctx context.Context, userKey, date string) (*DayState, error)
	Save(ctx context.Context, userKey string, state *DayState) error
	Clear(ctx context.Context, userKey, date string) error
}

// MemoryDayStore keeps day states in process memory
type MemoryDayStore struct {
	mu     sync.Mutex
	states map[string]DayState
}

// NewMemoryDayStore creates an empty in-memory store
func NewMemoryDayStore() *MemoryDayStore {
	return &MemoryDayStore{states: make(map[string]DayState)}
}

func dayKey(userKey, date string) string {
	return fmt.Sprintf("%s:%s", userKey, date)
}

func (m *MemoryDayStore) Load(_ context.Context, userKey, date string) (*DayState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved, ok := m.states[dayKey(userKey, date)]
	if !ok {
		return NewDayState(date), nil
	}
	return cloneDayState(saved), nil
}

func (m *MemoryDayStore) Save(_ context.Context, userKey string, state *DayState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[dayKey(userKey, state.Date)] = *cloneDayState(*state)
	return nil
}

func (m *MemoryDayStore) Clear(_ context.Context, userKey, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, dayKey(userKey, date))
	return nil
}

// Prune drops states of other days than keepDate and returns how many were removed
func (m *MemoryDayStore) Prune(keepDate string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, st := range m.states {
		if st.Date != keepDate {
			delete(m.states, k)
			removed++
		}
	}
	return removed
}

func cloneDayState(s DayState) *DayState {
	out := &DayState{Date: s.Date, NewCardsShown: s.NewCardsShown, Touched: make(map[string]int, len(s.Touched))}
	for k, v := range s.Touched {
		out.Touched[k] = v
	}
	return out
}
