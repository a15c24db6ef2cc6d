package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-chat/localstore"
)

func TestSaved_Toggle(t *testing.T) {
	store := localstore.NewMemoryStorage()
	s := NewSaved(store)
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	s.now = func() time.Time { return at }

	saved, err := s.Toggle("a/one", "One")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.True(t, s.IsSaved("a/one"))

	_, err = s.Toggle("b/two", "Two")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, SavedModelEntry{ID: "a/one", Name: "One", SavedAt: at.UnixMilli()}, list[0])

	saved, err = s.Toggle("a/one", "One")
	require.NoError(t, err)
	assert.False(t, saved)
	assert.False(t, s.IsSaved("a/one"))
	assert.Len(t, s.List(), 1)

	// survives a fresh registry over the same storage
	assert.True(t, NewSaved(store).IsSaved("b/two"))
}

func TestSaved_CorruptStorage(t *testing.T) {
	store := localstore.NewMemoryStorage()
	require.NoError(t, store.SetItem(SavedKey, "[{"))
	s := NewSaved(store)

	assert.Empty(t, s.List())
	saved, err := s.Toggle("a", "A")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Len(t, s.List(), 1)
}

func TestAnnotate(t *testing.T) {
	saved := []SavedModelEntry{{ID: "gone"}, {ID: "here"}}
	views := Annotate(saved, []Model{{ID: "here", Name: "Here"}})

	require.Len(t, views, 2)
	assert.False(t, views[0].Available)
	assert.Nil(t, views[0].Model)
	assert.True(t, views[1].Available)
	assert.Equal(t, "Here", views[1].Model.Name)
}

func TestSelection(t *testing.T) {
	store := localstore.NewMemoryStorage()
	sel := NewSelection(store)
	assert.Nil(t, sel.Selected())

	assert.Error(t, sel.Set(Model{}))
	require.NoError(t, sel.Set(Model{ID: "a/one", Name: "One"}))
	require.NoError(t, sel.Set(Model{ID: "b/two", Name: "Two"}))
	assert.Equal(t, "b/two", sel.Selected().ID)

	restored := NewSelection(store)
	require.NotNil(t, restored.Selected())
	assert.Equal(t, "Two", restored.Selected().Name)
}

func TestSelection_CorruptIsDropped(t *testing.T) {
	store := localstore.NewMemoryStorage()
	require.NoError(t, store.SetItem(SelectedKey, "{"))

	sel := NewSelection(store)
	assert.Nil(t, sel.Selected())
	_, ok, _ := store.GetItem(SelectedKey)
	assert.False(t, ok)
}
