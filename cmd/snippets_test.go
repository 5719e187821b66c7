package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/csae-toolkit/csae/internal/store"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeSnippetStore struct {
	SnippetsFunc       func(ctx context.Context) ([]store.Snippet, error)
	AddSnippetFunc     func(ctx context.Context, sn store.Snippet) (store.Snippet, error)
	ImportSnippetsFunc func(ctx context.Context, snippets []store.Snippet) ([]store.Snippet, error)
	GetSnippetFunc     func(ctx context.Context, ref string) (store.Snippet, error)
	RemoveSnippetFunc  func(ctx context.Context, ref string) error
}

func (f *FakeSnippetStore) Snippets(ctx context.Context) ([]store.Snippet, error) {
	if f.SnippetsFunc != nil {
		return f.SnippetsFunc(ctx)
	}
	return nil, nil
}

func (f *FakeSnippetStore) AddSnippet(ctx context.Context, sn store.Snippet) (store.Snippet, error) {
	if f.AddSnippetFunc != nil {
		return f.AddSnippetFunc(ctx, sn)
	}
	sn.ID = "0123456789abcdef"
	return sn, nil
}

func (f *FakeSnippetStore) ImportSnippets(ctx context.Context, snippets []store.Snippet) ([]store.Snippet, error) {
	if f.ImportSnippetsFunc != nil {
		return f.ImportSnippetsFunc(ctx, snippets)
	}
	return snippets, nil
}

func (f *FakeSnippetStore) GetSnippet(ctx context.Context, ref string) (store.Snippet, error) {
	if f.GetSnippetFunc != nil {
		return f.GetSnippetFunc(ctx, ref)
	}
	return store.Snippet{}, store.ErrNotFound
}

func (f *FakeSnippetStore) RemoveSnippet(ctx context.Context, ref string) error {
	if f.RemoveSnippetFunc != nil {
		return f.RemoveSnippetFunc(ctx, ref)
	}
	return nil
}

func TestSnippetsAdd_FromFile(t *testing.T) {
	setupStdoutCapture(t)
	path := filepath.Join(t.TempDir(), "reset.css")
	require.NoError(t, os.WriteFile(path, []byte("* { margin: 0 }"), 0o644))

	var saved store.Snippet
	fake := &FakeSnippetStore{
		AddSnippetFunc: func(ctx context.Context, sn store.Snippet) (store.Snippet, error) {
			saved = sn
			sn.ID = "abcdef0123456789"
			return sn, nil
		},
	}
	c := SnippetsCmd{snippets: fake, out: &bytes.Buffer{}}
	require.NoError(t, c.Add(context.Background(), AddSnippetInput{File: path}))

	assert.Equal(t, "reset.css", saved.Name)
	assert.Equal(t, "css", saved.Language)
	assert.Equal(t, "* { margin: 0 }", saved.Code)
	assert.Contains(t, outBuf.String(), "Saved snippet reset.css (abcdef01)")
}

func TestSnippetsAdd_FromStdin(t *testing.T) {
	var buf bytes.Buffer
	c := SnippetsCmd{snippets: &FakeSnippetStore{}, stdin: strings.NewReader("console.log(1)"), out: &buf}
	require.NoError(t, c.Add(context.Background(), AddSnippetInput{Name: "log", Language: "js", Output: "json"}))

	var got store.Snippet
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "log", got.Name)
	assert.Equal(t, "console.log(1)", got.Code)
}

func TestSnippetsAdd_Validation(t *testing.T) {
	ctx := context.Background()

	c := SnippetsCmd{snippets: &FakeSnippetStore{}, stdin: strings.NewReader("  \n"), out: &bytes.Buffer{}}
	assert.ErrorContains(t, c.Add(ctx, AddSnippetInput{Name: "blank"}), "snippet code is empty")

	c = SnippetsCmd{snippets: &FakeSnippetStore{}, out: &bytes.Buffer{}}
	assert.ErrorContains(t, c.Add(ctx, AddSnippetInput{Name: "x", Code: "a", Language: "ruby"}), `invalid language "ruby"`)

	big := strings.NewReader(strings.Repeat("a", util.MaxSnippetBytes+1))
	c = SnippetsCmd{snippets: &FakeSnippetStore{}, stdin: big, out: &bytes.Buffer{}}
	assert.ErrorContains(t, c.Add(ctx, AddSnippetInput{Name: "big"}), "snippet is larger than 64.0 KB")
}

func TestSnippetsList(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &FakeSnippetStore{
		SnippetsFunc: func(ctx context.Context) ([]store.Snippet, error) {
			return []store.Snippet{
				{ID: "11111111-aaaa", Name: "reset", Language: "css", Code: "* { margin: 0 }", CreatedAt: created},
				{ID: "22222222-bbbb", Name: "log", Language: "js", Code: "console.log(1)", CreatedAt: created},
			}, nil
		},
	}

	t.Run("table filtered by language", func(t *testing.T) {
		setupStdoutCapture(t)
		c := SnippetsCmd{snippets: fake, out: &bytes.Buffer{}}
		require.NoError(t, c.List(context.Background(), ListSnippetsInput{Language: "js"}))
		out := outBuf.String()
		assert.Contains(t, out, "22222222")
		assert.Contains(t, out, "console.log(1)")
		assert.NotContains(t, out, "reset")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		c := SnippetsCmd{snippets: fake, out: &buf}
		require.NoError(t, c.List(context.Background(), ListSnippetsInput{Output: "json"}))
		var got []store.Snippet
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("empty json is an array", func(t *testing.T) {
		var buf bytes.Buffer
		c := SnippetsCmd{snippets: &FakeSnippetStore{}, out: &buf}
		require.NoError(t, c.List(context.Background(), ListSnippetsInput{Output: "json"}))
		assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
	})
}

func TestSnippetsShowAndRemove(t *testing.T) {
	fake := &FakeSnippetStore{
		GetSnippetFunc: func(ctx context.Context, ref string) (store.Snippet, error) {
			if ref == "reset" {
				return store.Snippet{Name: "reset", Code: "* { margin: 0 }"}, nil
			}
			return store.Snippet{}, store.ErrNotFound
		},
		RemoveSnippetFunc: func(ctx context.Context, ref string) error {
			return errors.New("locked")
		},
	}

	var buf bytes.Buffer
	c := SnippetsCmd{snippets: fake, out: &buf}
	require.NoError(t, c.Show(context.Background(), SnippetRefInput{Ref: "reset"}))
	assert.Equal(t, "* { margin: 0 }\n", buf.String())

	err := c.Show(context.Background(), SnippetRefInput{Ref: "nope"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.EqualError(t, c.Remove(context.Background(), SnippetRefInput{Ref: "reset"}), "locked")
}

func TestSnippetsImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.css"), []byte("a{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.min.js"), []byte("x"), 0o644))

	t.Run("imports", func(t *testing.T) {
		setupStdoutCapture(t)
		var imported []store.Snippet
		fake := &FakeSnippetStore{
			ImportSnippetsFunc: func(ctx context.Context, snippets []store.Snippet) ([]store.Snippet, error) {
				imported = snippets
				return snippets, nil
			},
		}
		c := SnippetsCmd{snippets: fake, out: &bytes.Buffer{}}
		require.NoError(t, c.Import(context.Background(), ImportSnippetsInput{Dir: dir}))

		require.Len(t, imported, 1)
		assert.Equal(t, "a.css", imported[0].Name)
		assert.Equal(t, "css", imported[0].Language)
		assert.Contains(t, outBuf.String(), "Imported 1 snippet(s)")
		assert.Contains(t, outBuf.String(), "Skipped 1 file(s)")
	})

	t.Run("dry run does not save", func(t *testing.T) {
		setupStdoutCapture(t)
		fake := &FakeSnippetStore{
			ImportSnippetsFunc: func(ctx context.Context, snippets []store.Snippet) ([]store.Snippet, error) {
				t.Fatal("ImportSnippets called during dry run")
				return nil, nil
			},
		}
		c := SnippetsCmd{snippets: fake, out: &bytes.Buffer{}}
		require.NoError(t, c.Import(context.Background(), ImportSnippetsInput{Dir: dir, DryRun: true}))
		assert.Contains(t, outBuf.String(), "Dry run: 1 snippet(s) would be imported")
	})

	t.Run("not a directory", func(t *testing.T) {
		c := SnippetsCmd{snippets: &FakeSnippetStore{}, out: &bytes.Buffer{}}
		err := c.Import(context.Background(), ImportSnippetsInput{Dir: filepath.Join(dir, "a.css")})
		assert.ErrorContains(t, err, "is not a directory")
	})
}
