package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/csae-toolkit/csae/internal/page"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
)

// outBuf captures everything printed through pterm during a test.
var outBuf bytes.Buffer

func setupStdoutCapture(t *testing.T) {
	t.Helper()
	outBuf.Reset()
	pterm.SetDefaultOutput(&outBuf)
	pterm.DisableColor()
	t.Cleanup(func() {
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableColor()
	})
}

const fixtureHTML = `<!DOCTYPE html>
<html lang="en"><head><title>Fixture</title></head><body>
<div id="app">
<h1 class="title">Hello</h1>
<p class="lead">One</p>
<p>Two</p>
<img src="a.png">
<input type="email" id="email" data-testid="email-input" class="form-control" name="email">
</div>
</body></html>`

// writeFixture writes html to a temp file and returns its path.
func writeFixture(t *testing.T, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))
	return path
}

// fileLoader loads documents from disk with default options.
func fileLoader(ctx context.Context, src string) (*page.Document, error) {
	return page.Load(ctx, src, page.Options{})
}

// staticLoader returns the same parsed document for any source.
func staticLoader(t *testing.T, html string) DocumentLoader {
	t.Helper()
	return func(ctx context.Context, src string) (*page.Document, error) {
		return page.Parse(src, []byte(html))
	}
}
