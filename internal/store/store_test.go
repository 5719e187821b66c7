package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "csae.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetLastWriteWins(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "theme", "dark"))
	require.NoError(t, s.Set(ctx, "theme", "light"))

	v, err := s.Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Set(ctx, "", "x"))
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)
}

func TestKeysAndClear(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, k := range []string{"local:b", "local:a", "session:x"} {
		require.NoError(t, s.Set(ctx, k, "value"))
	}

	entries, err := s.Keys(ctx, "local:")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "local:a", entries[0].Key)
	assert.Equal(t, 5, entries[0].Size)
	assert.False(t, entries[0].UpdatedAt.IsZero())

	all, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := s.Clear(ctx, "local:")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.Clear(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	all, err = s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestJSONHelpers(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	type doc struct {
		Name  string   `json:"name"`
		Items []string `json:"items"`
	}
	require.NoError(t, s.SetJSON(ctx, "doc", doc{Name: "n", Items: []string{"x"}}))

	var got doc
	require.NoError(t, s.GetJSON(ctx, "doc", &got))
	assert.Equal(t, doc{Name: "n", Items: []string{"x"}}, got)

	require.NoError(t, s.Set(ctx, "bad", "{"))
	assert.Error(t, s.GetJSON(ctx, "bad", &got))
	assert.ErrorIs(t, s.GetJSON(ctx, "nope", &got), ErrNotFound)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "csae.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	version, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
	assert.Equal(t, path, s.Path())
}

func TestOpenRejectsNewerMajor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csae.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.DB.Exec(`UPDATE meta SET value = '2.1.0' WHERE name = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, path)
	assert.ErrorIs(t, err, ErrIncompatible)
}

func TestSettings(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	settings, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Empty(t, settings)

	require.NoError(t, s.SetSetting(ctx, SettingHistoryMaxSteps, "20"))
	require.NoError(t, s.SetSetting(ctx, SettingOutput, "json"))

	n, ok, err := s.IntSetting(ctx, SettingHistoryMaxSteps)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 20, n)

	require.NoError(t, s.SetSetting(ctx, SettingHistoryMaxSteps, ""))
	_, ok, err = s.IntSetting(ctx, SettingHistoryMaxSteps)
	require.NoError(t, err)
	assert.False(t, ok)

	tests := []struct {
		name, value string
	}{
		{SettingHistoryMaxSteps, "0"},
		{SettingHistoryMaxSteps, "many"},
		{SettingOutput, "xml"},
		{SettingRender, "yes"},
		{"colour", "blue"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			assert.Error(t, s.SetSetting(ctx, tt.name, tt.value))
		})
	}
}

func TestSnippets(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	added, err := s.AddSnippet(ctx, Snippet{Name: "reset", Language: "css", Code: "* { margin: 0 }"})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.False(t, added.CreatedAt.IsZero())

	_, err = s.ImportSnippets(ctx, []Snippet{
		{Name: "log", Language: "js", Code: "console.log(1)"},
		{Name: "note", Code: "hello"},
	})
	require.NoError(t, err)

	all, err := s.Snippets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"reset", "log", "note"}, []string{all[0].Name, all[1].Name, all[2].Name})
	assert.Equal(t, "text", all[2].Language)

	got, err := s.GetSnippet(ctx, added.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, added.Code, got.Code)

	got, err = s.GetSnippet(ctx, "log")
	require.NoError(t, err)
	assert.Equal(t, "js", got.Language)

	require.NoError(t, s.RemoveSnippet(ctx, "reset"))
	_, err = s.GetSnippet(ctx, "reset")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.RemoveSnippet(ctx, "reset"), ErrNotFound)

	_, err = s.AddSnippet(ctx, Snippet{Name: "x", Language: "cobol"})
	assert.Error(t, err)
	_, err = s.AddSnippet(ctx, Snippet{Name: " "})
	assert.Error(t, err)

	all, err = s.Snippets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFavorites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddFavorite(ctx, Favorite{Selector: "#main", Label: "main"}))
	require.NoError(t, s.AddFavorite(ctx, Favorite{Selector: ".card", URL: "https://example.com"}))
	require.NoError(t, s.AddFavorite(ctx, Favorite{Selector: "#main", Label: "renamed"}))

	all, err := s.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ".card", all[0].Selector)
	assert.Equal(t, "renamed", all[1].Label)

	require.NoError(t, s.RemoveFavorite(ctx, "#main"))
	assert.ErrorIs(t, s.RemoveFavorite(ctx, "#main"), ErrNotFound)
	assert.Error(t, s.AddFavorite(ctx, Favorite{}))
}
