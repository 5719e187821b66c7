package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/csae-toolkit/csae/internal/config"
	"github.com/csae-toolkit/csae/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	return &config.Config{
		Home:    home,
		Store:   filepath.Join(home, "csae.db"),
		Output:  "text",
		History: config.HistoryConfig{MaxSteps: 50},
		Fetch:   config.FetchConfig{Timeout: 30 * time.Second, MaxBytes: 10 << 20},
	}
}

func findGroup(t *testing.T, resp statusResponse, name string) statusGroup {
	t.Helper()
	for _, g := range resp.Groups {
		if g.Name == name {
			return g
		}
	}
	t.Fatalf("group %q not found", name)
	return statusGroup{}
}

func TestStatus_FreshInstall(t *testing.T) {
	var buf bytes.Buffer
	c := StatusCmd{
		cfg:        testConfig(t),
		openStore:  store.Open,
		lookChrome: func(bin string) (string, bool) { return "/usr/bin/chromium", true },
		out:        &buf,
	}
	require.NoError(t, c.Status(context.Background(), "json"))

	var resp statusResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, statusOK, resp.Status)

	st := findGroup(t, resp, "Store")
	require.Len(t, st.Components, 1)
	assert.Equal(t, statusInfo, st.Components[0].Status)
	assert.Contains(t, st.Components[0].Detail, "created on first use")

	br := findGroup(t, resp, "Browser")
	assert.Equal(t, "/usr/bin/chromium", br.Components[0].Detail)
}

func TestStatus_WithStore(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	s, err := store.Open(ctx, cfg.Store)
	require.NoError(t, err)
	_, err = s.AddSnippet(ctx, store.Snippet{Name: "a", Code: "a{}"})
	require.NoError(t, err)
	require.NoError(t, s.AddFavorite(ctx, store.Favorite{Selector: "#app"}))
	require.NoError(t, s.Close())

	var buf bytes.Buffer
	c := StatusCmd{
		cfg:        cfg,
		openStore:  store.Open,
		lookChrome: func(bin string) (string, bool) { return "", false },
		out:        &buf,
	}
	require.NoError(t, c.Status(ctx, "json"))

	var resp statusResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, statusWarning, resp.Status)

	details := map[string]string{}
	for _, comp := range findGroup(t, resp, "Store").Components {
		details[comp.Name] = comp.Detail
	}
	assert.Equal(t, store.SchemaVersion, details["Schema"])
	assert.Equal(t, "2", details["Keys"])
	assert.Equal(t, "1", details["Snippets"])
	assert.Equal(t, "1", details["Favorites"])

	assert.Equal(t, statusWarning, findGroup(t, resp, "Browser").Status)
}

func TestStatus_ExplicitChromeMissing(t *testing.T) {
	setupStdoutCapture(t)

	cfg := testConfig(t)
	cfg.Browser.Bin = "/opt/none/chrome"
	c := StatusCmd{
		cfg:        cfg,
		openStore:  store.Open,
		lookChrome: func(bin string) (string, bool) { return bin, false },
		out:        &bytes.Buffer{},
	}
	require.NoError(t, c.Status(context.Background(), ""))

	out := outBuf.String()
	assert.Contains(t, out, "Error")
	assert.Contains(t, out, "/opt/none/chrome not found")
	assert.Contains(t, out, "Configuration")
}
