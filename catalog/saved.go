package catalog

import (
	"errors"
	"sync"
	"time"

	"ai-chat/localstore"
	"ai-chat/logger"
)

const SavedKey = "saved_openrouter_models"

// SavedModelEntry is one starred model. It may outlive the catalog entry it
// refers to.
type SavedModelEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	SavedAt int64  `json:"savedAt"`
}

func (e SavedModelEntry) SavedTime() time.Time { return time.UnixMilli(e.SavedAt) }

// Saved is the saved-model registry.
type Saved struct {
	store localstore.Storage
	now   func() time.Time
	mu    sync.Mutex
}

func NewSaved(store localstore.Storage) *Saved {
	return &Saved{store: store, now: time.Now}
}

// Toggle removes id when it is saved and adds it otherwise. It reports
// whether the model is saved afterwards.
func (s *Saved) Toggle(id, name string) (bool, error) {
	if id == "" {
		return false, errors.New("model id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	saved := true
	idx := indexOf(entries, id)
	if idx >= 0 {
		entries = append(entries[:idx], entries[idx+1:]...)
		saved = false
	} else {
		entries = append(entries, SavedModelEntry{ID: id, Name: name, SavedAt: s.now().UnixMilli()})
	}

	if err := localstore.SetJSON(s.store, SavedKey, entries); err != nil {
		return !saved, err
	}
	return saved, nil
}

func (s *Saved) IsSaved(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.load(), id) >= 0
}

// List returns every saved entry in the order it was saved.
func (s *Saved) List() []SavedModelEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load treats an unreadable registry as empty; the next Toggle overwrites it.
func (s *Saved) load() []SavedModelEntry {
	entries := []SavedModelEntry{}
	if _, err := localstore.GetJSON(s.store, SavedKey, &entries); err != nil {
		logger.Log.Errorf("failed to parse saved models: %v", err)
		return []SavedModelEntry{}
	}
	return entries
}

func indexOf(entries []SavedModelEntry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// SavedView pairs a saved entry with its current catalog model. Model is nil
// and Available false when the catalog no longer lists it.
type SavedView struct {
	Entry     SavedModelEntry
	Model     *Model
	Available bool
}

// Annotate cross-references saved entries against a catalog listing.
func Annotate(saved []SavedModelEntry, models []Model) []SavedView {
	byID := make(map[string]int, len(models))
	for i, m := range models {
		byID[m.ID] = i
	}
	views := make([]SavedView, 0, len(saved))
	for _, e := range saved {
		v := SavedView{Entry: e}
		if i, ok := byID[e.ID]; ok {
			m := models[i]
			v.Model = &m
			v.Available = true
		}
		views = append(views, v)
	}
	return views
}
