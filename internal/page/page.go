// Package page loads HTML documents from files, stdin, HTTP or a headless
// Chrome render, and exposes them as x/net/html trees.
package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/csae-toolkit/csae/pkg/selector"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pterm/pterm"
	"golang.org/x/net/html"
)

// Stdin is the source name that reads the document from standard input.
const Stdin = "-"

// ErrTooLarge is returned when a document exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("document too large")

// Options controls how Load acquires a document.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64

	// Render loads http(s) sources through Renderer instead of a plain GET.
	Render   bool
	Renderer Renderer

	Client *http.Client
	Stdin  io.Reader
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 10 << 20
	}
	if o.UserAgent == "" {
		o.UserAgent = "csae"
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.Timeout}
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
}

// Document is a parsed HTML document.
type Document struct {
	Root *html.Node
	// Source is the path, URL or "-" the document was loaded from.
	Source string
}

// Load reads and parses the document at src.
func Load(ctx context.Context, src string, opts Options) (*Document, error) {
	opts.defaults()

	var (
		data []byte
		err  error
	)
	switch {
	case src == Stdin:
		data, err = readCapped(opts.Stdin, opts.MaxBytes)
	case IsURL(src) && opts.Render:
		if opts.Renderer == nil {
			return nil, errors.New("rendering requested but no renderer configured")
		}
		var out string
		out, err = opts.Renderer.Render(ctx, src)
		data = []byte(out)
	case IsURL(src):
		data, err = fetch(ctx, src, opts)
	default:
		var f *os.File
		if f, err = os.Open(src); err == nil {
			data, err = readCapped(f, opts.MaxBytes)
			f.Close()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", src, err)
	}

	pterm.Debug.Printfln("Loaded %s (%d bytes)", src, len(data))
	return Parse(src, data)
}

// Parse builds a Document from raw HTML.
func Parse(src string, data []byte) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", src, err)
	}
	return &Document{Root: root, Source: src}, nil
}

// IsURL reports whether src is an http or https URL.
func IsURL(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func fetch(ctx context.Context, url string, opts Options) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return readCapped(resp.Body, opts.MaxBytes)
}

func readCapped(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

// First returns the first element matching sel, or nil.
func (d *Document) First(sel string) (*html.Node, error) {
	return selector.Query(d.Root, sel)
}

// All returns every element matching sel in document order.
func (d *Document) All(sel string) ([]*html.Node, error) {
	return selector.QueryAll(d.Root, sel)
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.Root)
}

// String renders the document to a string.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// WriteFile renders the document and atomically replaces path with it.
func (d *Document) WriteFile(path string, perm os.FileMode) error {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return fmt.Errorf("failed to render %s: %w", d.Source, err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
