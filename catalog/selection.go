package catalog

import (
	"errors"
	"sync"

	"ai-chat/localstore"
	"ai-chat/logger"
)

const SelectedKey = "selected_openrouter_model"

// Selection holds the active model. Once set it is only ever replaced.
type Selection struct {
	store localstore.Storage

	mu       sync.RWMutex
	selected *Model
}

// NewSelection restores the persisted selection, dropping it if unreadable.
func NewSelection(store localstore.Storage) *Selection {
	s := &Selection{store: store}

	var m Model
	ok, err := localstore.GetJSON(store, SelectedKey, &m)
	switch {
	case err != nil:
		logger.Log.Errorf("failed to parse stored model: %v", err)
		if err := store.RemoveItem(SelectedKey); err != nil {
			logger.Log.Warnf("failed to drop stored model: %v", err)
		}
	case ok && m.ID != "":
		s.selected = &m
	}
	return s
}

func (s *Selection) Set(m Model) error {
	if m.ID == "" {
		return errors.New("model id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := localstore.SetJSON(s.store, SelectedKey, m); err != nil {
		return err
	}
	s.selected = &m
	return nil
}

// Selected returns a copy of the selected model, or nil when none is set.
func (s *Selection) Selected() *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	m := *s.selected
	return &m
}
