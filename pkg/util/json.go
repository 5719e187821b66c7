package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// ErrInvalidJSON is returned when input is not valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// JSONFormat controls how FormatJSON lays out a document.
type JSONFormat struct {
	Indent   string
	SortKeys bool
	Compact  bool
}

// FormatJSON validates data and re-indents it (or compacts it).
func FormatJSON(data []byte, f JSONFormat) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	if f.Compact {
		if f.SortKeys {
			data = pretty.PrettyOptions(data, &pretty.Options{SortKeys: true})
		}
		return pretty.Ugly(data), nil
	}
	indent := f.Indent
	if indent == "" {
		indent = "  "
	}
	return pretty.PrettyOptions(data, &pretty.Options{
		Width:    80,
		Indent:   indent,
		SortKeys: f.SortKeys,
	}), nil
}

// QueryJSON evaluates a gjson path against data.
func QueryJSON(data []byte, path string) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, ErrInvalidJSON
	}
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return res, fmt.Errorf("no value at path %q", path)
	}
	return res, nil
}

// PrintJSON marshals v and writes it indented to w, colourised when w is a
// terminal.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return WriteJSON(w, pretty.Pretty(data))
}

// WriteJSON writes already encoded JSON to w, colourised when w is a
// terminal.
func WriteJSON(w io.Writer, data []byte) error {
	if IsTerminal(w) && pterm.PrintColor {
		data = pretty.Color(data, pretty.TerminalStyle)
	}
	_, err := w.Write(data)
	return err
}

// IsTerminal reports whether w is a character device.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
