package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/boyter/gocodewalker"
)

// MaxSnippetBytes is the largest file CollectSnippets will import.
const MaxSnippetBytes = 64 << 10

// DefaultSnippetExclusions lists directories and filename patterns that are
// never imported as snippets.
var DefaultSnippetExclusions = struct {
	ExcludeDirectory        []string
	ExcludeFilenamePatterns []string
}{
	ExcludeDirectory: []string{
		"node_modules",
		".git",
		"dist",
		"coverage",
	},
	ExcludeFilenamePatterns: []string{
		"*.min.js",
		"*.min.css",
		"*.map",
	},
}

var snippetLanguages = map[string]string{
	".css":  "css",
	".js":   "js",
	".mjs":  "js",
	".ts":   "js",
	".html": "html",
	".htm":  "html",
	".txt":  "text",
	".md":   "text",
}

// SnippetLanguage maps a file name to a snippet language, or "" when the
// extension is not supported.
func SnippetLanguage(name string) string {
	return snippetLanguages[strings.ToLower(filepath.Ext(name))]
}

// SnippetFile is a file found by CollectSnippets.
type SnippetFile struct {
	Name     string
	Path     string
	Language string
	Code     string
}

// SnippetWalkOptions configures CollectSnippets.
type SnippetWalkOptions struct {
	IncludeHidden   bool
	ExcludeDefaults bool // If true, don't apply default exclusions
	Verbose         bool // Track individual skipped files
}

// WalkStats tracks what CollectSnippets imported and skipped.
type WalkStats struct {
	mu           sync.Mutex
	FilesFound   int
	FilesSkipped int
	BytesFound   int64
	SkippedPaths []string
}

func (s *WalkStats) addFound(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesFound++
	s.BytesFound += bytes
}

func (s *WalkStats) addSkipped(path string, verbose bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilesSkipped++
	if verbose {
		s.SkippedPaths = append(s.SkippedPaths, path)
	}
}

// CollectSnippets walks dir, honouring .gitignore and .ignore files, and
// returns every supported source file as a snippet candidate. Names are
// paths relative to dir with forward slashes.
func CollectSnippets(dir string, opts *SnippetWalkOptions) ([]SnippetFile, *WalkStats, error) {
	if opts == nil {
		opts = &SnippetWalkOptions{}
	}
	stats := &WalkStats{}

	fileQueue := make(chan *gocodewalker.File, 256)
	walker := gocodewalker.NewFileWalker(dir, fileQueue)
	walker.IncludeHidden = opts.IncludeHidden
	if !opts.ExcludeDefaults {
		walker.ExcludeDirectory = append(walker.ExcludeDirectory, DefaultSnippetExclusions.ExcludeDirectory...)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- walker.Start()
	}()

	var (
		files    []SnippetFile
		firstErr error
	)
	for f := range fileQueue {
		// Keep draining so the walker can finish.
		if firstErr != nil {
			continue
		}
		rel, err := filepath.Rel(dir, f.Location)
		if err != nil {
			firstErr = err
			continue
		}
		rel = filepath.ToSlash(rel)

		lang := SnippetLanguage(f.Filename)
		if lang == "" || (!opts.ExcludeDefaults && excludedName(f.Filename)) {
			stats.addSkipped(rel, opts.Verbose)
			continue
		}

		info, err := os.Stat(f.Location)
		if err != nil {
			firstErr = err
			continue
		}
		if info.Size() > MaxSnippetBytes {
			stats.addSkipped(rel, opts.Verbose)
			continue
		}

		data, err := os.ReadFile(f.Location)
		if err != nil {
			firstErr = err
			continue
		}
		stats.addFound(int64(len(data)))
		files = append(files, SnippetFile{Name: rel, Path: f.Location, Language: lang, Code: string(data)})
	}

	if err := <-errChan; err != nil {
		return files, stats, fmt.Errorf("directory walk failed: %w", err)
	}
	return files, stats, firstErr
}

func excludedName(name string) bool {
	for _, pattern := range DefaultSnippetExclusions.ExcludeFilenamePatterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}
