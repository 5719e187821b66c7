package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/csae-toolkit/csae/internal/store"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeKVStore struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key, value string) error
	DeleteFunc func(ctx context.Context, key string) error
	KeysFunc   func(ctx context.Context, prefix string) ([]store.Entry, error)
	ClearFunc  func(ctx context.Context, prefix string) (int64, error)
}

func (f *FakeKVStore) Get(ctx context.Context, key string) (string, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key)
	}
	return "", fmt.Errorf("%w: %s", store.ErrNotFound, key)
}

func (f *FakeKVStore) Set(ctx context.Context, key, value string) error {
	if f.SetFunc != nil {
		return f.SetFunc(ctx, key, value)
	}
	return nil
}

func (f *FakeKVStore) Delete(ctx context.Context, key string) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, key)
	}
	return nil
}

func (f *FakeKVStore) Keys(ctx context.Context, prefix string) ([]store.Entry, error) {
	if f.KeysFunc != nil {
		return f.KeysFunc(ctx, prefix)
	}
	return nil, nil
}

func (f *FakeKVStore) Clear(ctx context.Context, prefix string) (int64, error) {
	if f.ClearFunc != nil {
		return f.ClearFunc(ctx, prefix)
	}
	return 0, nil
}

func TestStorageGet(t *testing.T) {
	fake := &FakeKVStore{
		GetFunc: func(ctx context.Context, key string) (string, error) {
			switch key {
			case "doc":
				return `{"a":[1,2]}`, nil
			case "plain":
				return "hello", nil
			}
			return "", fmt.Errorf("%w: %s", store.ErrNotFound, key)
		},
	}

	var buf bytes.Buffer
	c := StorageCmd{kv: fake, out: &buf}
	require.NoError(t, c.Get(context.Background(), StorageGetInput{Key: "doc"}))
	assert.Equal(t, "{\n  \"a\": [1, 2]\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, c.Get(context.Background(), StorageGetInput{Key: "plain"}))
	assert.Equal(t, "hello\n", buf.String())

	setupStdoutCapture(t)
	require.NoError(t, c.Get(context.Background(), StorageGetInput{Key: "missing"}))
	assert.Contains(t, outBuf.String(), "Key 'missing' not found")
}

func TestStorageSet(t *testing.T) {
	setupStdoutCapture(t)

	var gotKey, gotValue string
	fake := &FakeKVStore{
		SetFunc: func(ctx context.Context, key, value string) error {
			gotKey, gotValue = key, value
			return nil
		},
	}
	c := StorageCmd{kv: fake, out: &bytes.Buffer{}}

	require.NoError(t, c.Set(context.Background(), StorageSetInput{Key: "k", Value: "{ \"a\" : 1 }", JSON: true}))
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, `{"a":1}`, gotValue)

	err := c.Set(context.Background(), StorageSetInput{Key: "k", Value: "{", JSON: true})
	assert.ErrorIs(t, err, util.ErrInvalidJSON)

	require.NoError(t, c.Set(context.Background(), StorageSetInput{Key: store.KeySnippets, Value: "[]"}))
	assert.Contains(t, outBuf.String(), "prefer the dedicated commands")
}

func TestStorageKeys(t *testing.T) {
	updated := time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC)
	fake := &FakeKVStore{
		KeysFunc: func(ctx context.Context, prefix string) ([]store.Entry, error) {
			assert.Equal(t, "fav", prefix)
			return []store.Entry{{Key: "favorites", Size: 2048, UpdatedAt: updated}}, nil
		},
	}

	setupStdoutCapture(t)
	c := StorageCmd{kv: fake, out: &bytes.Buffer{}}
	require.NoError(t, c.Keys(context.Background(), StorageKeysInput{Prefix: "fav"}))
	assert.Contains(t, outBuf.String(), "favorites")
	assert.Contains(t, outBuf.String(), "2.0 KB")

	var buf bytes.Buffer
	c = StorageCmd{kv: fake, out: &buf}
	require.NoError(t, c.Keys(context.Background(), StorageKeysInput{Prefix: "fav", Output: "json"}))
	var got []store.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 2048, got[0].Size)
}

func TestStorageClear_SkipConfirm(t *testing.T) {
	setupStdoutCapture(t)

	var cleared string
	fake := &FakeKVStore{
		ClearFunc: func(ctx context.Context, prefix string) (int64, error) {
			cleared = prefix
			return 3, nil
		},
	}
	c := StorageCmd{kv: fake, out: &bytes.Buffer{}}
	require.NoError(t, c.Clear(context.Background(), StorageClearInput{Prefix: "tmp:", SkipConfirm: true}))
	assert.Equal(t, "tmp:", cleared)
	assert.Contains(t, outBuf.String(), "Cleared 3 key(s)")
}

func TestStorageDelete_NotFoundIsInfo(t *testing.T) {
	setupStdoutCapture(t)

	fake := &FakeKVStore{
		DeleteFunc: func(ctx context.Context, key string) error {
			return fmt.Errorf("%w: %s", store.ErrNotFound, key)
		},
	}
	c := StorageCmd{kv: fake, out: &bytes.Buffer{}}
	require.NoError(t, c.Delete(context.Background(), "gone"))
	assert.Contains(t, outBuf.String(), "Key 'gone' not found")
}

type FakeSettingsStore struct {
	values map[string]string
}

func (f *FakeSettingsStore) Settings(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *FakeSettingsStore) SetSetting(ctx context.Context, name, value string) error {
	if name == "bogus" {
		return fmt.Errorf("unknown setting %q", name)
	}
	if value == "" {
		delete(f.values, name)
		return nil
	}
	f.values[name] = value
	return nil
}

func TestSettings(t *testing.T) {
	setupStdoutCapture(t)

	fake := &FakeSettingsStore{values: map[string]string{}}
	c := SettingsCmd{settings: fake, out: &bytes.Buffer{}}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, store.SettingHistoryMaxSteps, "10"))
	assert.Contains(t, outBuf.String(), "Set history_max_steps to 10")
	assert.Error(t, c.Set(ctx, "bogus", "1"))

	outBuf.Reset()
	require.NoError(t, c.List(ctx, ""))
	out := outBuf.String()
	assert.Contains(t, out, "history_max_steps")
	assert.Contains(t, out, "10")
	assert.Contains(t, out, store.SettingRender)

	require.NoError(t, c.Set(ctx, store.SettingHistoryMaxSteps, ""))
	assert.Empty(t, fake.values)
	assert.Contains(t, outBuf.String(), "Reset history_max_steps")
}

type FakeFavoriteStore struct {
	AddFavoriteFunc func(ctx context.Context, f store.Favorite) error
	favorites       []store.Favorite
}

func (f *FakeFavoriteStore) Favorites(ctx context.Context) ([]store.Favorite, error) {
	return f.favorites, nil
}

func (f *FakeFavoriteStore) AddFavorite(ctx context.Context, fav store.Favorite) error {
	if f.AddFavoriteFunc != nil {
		return f.AddFavoriteFunc(ctx, fav)
	}
	f.favorites = append(f.favorites, fav)
	return nil
}

func (f *FakeFavoriteStore) RemoveFavorite(ctx context.Context, selector string) error {
	for i, fav := range f.favorites {
		if fav.Selector == selector {
			f.favorites = append(f.favorites[:i], f.favorites[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: favorite %s", store.ErrNotFound, selector)
}

func TestFavoritesAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("checked against a document", func(t *testing.T) {
		setupStdoutCapture(t)
		fake := &FakeFavoriteStore{}
		c := FavoritesCmd{favorites: fake, load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}

		require.NoError(t, c.Add(ctx, AddFavoriteInput{Selector: "p", Label: "paragraphs", Check: "https://example.com/"}))
		require.Len(t, fake.favorites, 1)
		assert.Equal(t, "https://example.com/", fake.favorites[0].URL)
		assert.Contains(t, outBuf.String(), "p matches 2 elements")
	})

	t.Run("no match in document", func(t *testing.T) {
		fake := &FakeFavoriteStore{}
		c := FavoritesCmd{favorites: fake, load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
		err := c.Add(ctx, AddFavoriteInput{Selector: "table", Check: "page.html"})
		assert.ErrorContains(t, err, "matches no elements")
		assert.Empty(t, fake.favorites)
	})

	t.Run("invalid selector", func(t *testing.T) {
		c := FavoritesCmd{favorites: &FakeFavoriteStore{}, out: &bytes.Buffer{}}
		assert.Error(t, c.Add(ctx, AddFavoriteInput{Selector: "p[["}))
	})
}

func TestFavoritesListAndRemove(t *testing.T) {
	ctx := context.Background()
	fake := &FakeFavoriteStore{favorites: []store.Favorite{
		{Selector: "#app", URL: "https://a.example/"},
		{Selector: "div>span", URL: "https://b.example/"},
	}}

	var buf bytes.Buffer
	c := FavoritesCmd{favorites: fake, out: &buf}
	require.NoError(t, c.List(ctx, ListFavoritesInput{URL: "https://a.example/", Output: "json"}))

	var got []favoriteView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "#app", got[0].Selector)
	assert.Equal(t, 40, got[0].Score)

	setupStdoutCapture(t)
	require.NoError(t, c.Remove(ctx, "#app"))
	assert.Contains(t, outBuf.String(), "Favorite #app deleted")
	assert.ErrorIs(t, c.Remove(ctx, "#app"), store.ErrNotFound)

	outBuf.Reset()
	require.NoError(t, c.List(ctx, ListFavoritesInput{}))
	assert.True(t, strings.Contains(outBuf.String(), "div>span"))
}
