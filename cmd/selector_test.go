package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorDerive_PrintsTable(t *testing.T) {
	setupStdoutCapture(t)

	c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
	err := c.Derive(context.Background(), DeriveInput{Source: "fixture", Query: "p"})
	require.NoError(t, err)

	out := outBuf.String()
	assert.Contains(t, out, "#app>p.lead")
	assert.Contains(t, out, "#app>p:nth-of-type(2)")
	assert.Contains(t, out, "yes")
}

func TestSelectorDerive_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &buf}

	err := c.Derive(context.Background(), DeriveInput{Source: "fixture", Query: "h1, p", Limit: 2, Output: "json"})
	require.NoError(t, err)

	var got []derivedSelector
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "#app>h1.title", got[0].Selector)
	assert.Equal(t, `document.querySelector('#app>h1.title')`, got[0].JSPath)
	assert.True(t, got[0].Unique)
	assert.Equal(t, "#app>p.lead", got[1].Selector)
}

func TestSelectorDerive_NoMatches(t *testing.T) {
	setupStdoutCapture(t)

	c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
	require.NoError(t, c.Derive(context.Background(), DeriveInput{Source: "fixture", Query: "table"}))
	assert.Contains(t, outBuf.String(), "No elements match table")
}

func TestSelectorDerive_RejectsUnknownOutput(t *testing.T) {
	c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
	err := c.Derive(context.Background(), DeriveInput{Source: "fixture", Query: "p", Output: "yaml"})
	assert.EqualError(t, err, "unsupported --output value: use 'json'")
}

func TestSelectorConversions(t *testing.T) {
	tests := []struct {
		name string
		run  func(c SelectorCmd, in ConvertInput) error
		in   string
		want string
	}{
		{
			name: "xpath",
			run:  func(c SelectorCmd, in ConvertInput) error { return c.XPath(context.Background(), in) },
			in:   "#foo",
			want: `//*[@id="foo"]` + "\n",
		},
		{
			name: "jspath",
			run:  func(c SelectorCmd, in ConvertInput) error { return c.JSPath(context.Background(), in) },
			in:   "#foo",
			want: "document.querySelector('#foo')\n",
		},
		{
			name: "optimize drops ancestors of the last id",
			run:  func(c SelectorCmd, in ConvertInput) error { return c.Optimize(context.Background(), in) },
			in:   "body>#app>p.lead",
			want: "#app>p.lead\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, tt.run(SelectorCmd{out: &buf}, ConvertInput{Selector: tt.in}))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSelectorConvert_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	c := SelectorCmd{out: &buf}
	require.NoError(t, c.XPath(context.Background(), ConvertInput{Selector: "#foo", Output: "json"}))

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "#foo", got["selector"])
	assert.Equal(t, `//*[@id="foo"]`, got["xpath"])
}

func TestSelectorScore(t *testing.T) {
	setupStdoutCapture(t)

	c := SelectorCmd{out: &bytes.Buffer{}}
	require.NoError(t, c.Score(context.Background(), ConvertInput{Selector: "#app"}))

	out := outBuf.String()
	assert.Contains(t, out, "40")
	assert.Contains(t, out, "Uses an ID (+40)")
}

func TestSelectorValidate(t *testing.T) {
	t.Run("unique", func(t *testing.T) {
		setupStdoutCapture(t)
		c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
		require.NoError(t, c.Validate(context.Background(), ValidateInput{Source: "f", Selector: "#app>p.lead"}))
		assert.Contains(t, outBuf.String(), "matches exactly one element")
	})

	t.Run("several", func(t *testing.T) {
		setupStdoutCapture(t)
		c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
		require.NoError(t, c.Validate(context.Background(), ValidateInput{Source: "f", Selector: "p"}))
		out := outBuf.String()
		assert.Contains(t, out, "p matches 2 elements")
		assert.Contains(t, out, "#app>p:nth-of-type(2)")
	})

	t.Run("invalid in text mode is an error", func(t *testing.T) {
		setupStdoutCapture(t)
		c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
		err := c.Validate(context.Background(), ValidateInput{Source: "f", Selector: "p[["})
		assert.Error(t, err)
	})

	t.Run("invalid in json mode is reported", func(t *testing.T) {
		var buf bytes.Buffer
		c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &buf}
		require.NoError(t, c.Validate(context.Background(), ValidateInput{Source: "f", Selector: "p[[", Output: "json"}))

		var got validation
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.False(t, got.Valid)
		assert.NotEmpty(t, got.Error)
		assert.Equal(t, 0, got.Count)
	})
}

func TestSelectorAlternatives(t *testing.T) {
	var buf bytes.Buffer
	c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &buf}

	err := c.Alternatives(context.Background(), AlternativesInput{Source: "f", Query: "input", Output: "json"})
	require.NoError(t, err)

	var got []alternativeResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 4)
	assert.Equal(t, "#email", got[0].Selector)
	assert.Equal(t, `[data-testid="email-input"]`, got[1].Selector)
	assert.Equal(t, `[name="email"]`, got[2].Selector)
	assert.Equal(t, ".form-control", got[3].Selector)
	for _, a := range got {
		assert.Equal(t, 1, a.Matches, a.Selector)
	}
}

func TestSelectorAlternatives_NoMatch(t *testing.T) {
	c := SelectorCmd{load: staticLoader(t, fixtureHTML), out: &bytes.Buffer{}}
	err := c.Alternatives(context.Background(), AlternativesInput{Source: "f", Query: "table"})
	assert.EqualError(t, err, "no element matches table")
}
