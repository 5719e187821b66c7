package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Keys reserved for typed records.
const (
	KeySettings  = "settings"
	KeySnippets  = "snippets"
	KeyFavorites = "favorites"
)

// Setting names understood by csae.
const (
	SettingHistoryMaxSteps = "history_max_steps"
	SettingOutput          = "output"
	SettingRender          = "render"
)

// Settings returns all persisted settings. A store without settings yields
// an empty map.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := s.GetJSON(ctx, KeySettings, &out)
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	return out, err
}

// SetSetting persists a single setting. An empty value removes it.
func (s *Store) SetSetting(ctx context.Context, name, value string) error {
	if err := validateSetting(name, value); err != nil {
		return err
	}
	settings, err := s.Settings(ctx)
	if err != nil {
		return err
	}
	if value == "" {
		delete(settings, name)
	} else {
		settings[name] = value
	}
	return s.SetJSON(ctx, KeySettings, settings)
}

// IntSetting returns a setting parsed as an int. ok is false when the
// setting is absent or not a number.
func (s *Store) IntSetting(ctx context.Context, name string) (n int, ok bool, err error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return 0, false, err
	}
	v, present := settings[name]
	if !present {
		return 0, false, nil
	}
	n, convErr := strconv.Atoi(v)
	return n, convErr == nil, nil
}

func validateSetting(name, value string) error {
	switch name {
	case SettingHistoryMaxSteps:
		if value == "" {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer", name)
		}
	case SettingOutput:
		if value != "" && value != "json" && value != "text" {
			return fmt.Errorf("%s must be json or text", name)
		}
	case SettingRender:
		if value != "" && value != "true" && value != "false" {
			return fmt.Errorf("%s must be true or false", name)
		}
	default:
		return fmt.Errorf("unknown setting %q", name)
	}
	return nil
}

// Snippet is a saved piece of code.
type Snippet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Snippet languages.
var SnippetLanguages = []string{"css", "js", "html", "text"}

// Snippets returns all saved snippets in insertion order.
func (s *Store) Snippets(ctx context.Context) ([]Snippet, error) {
	var out []Snippet
	err := s.GetJSON(ctx, KeySnippets, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}

// AddSnippet assigns an ID and timestamp to sn and saves it.
func (s *Store) AddSnippet(ctx context.Context, sn Snippet) (Snippet, error) {
	added, err := s.ImportSnippets(ctx, []Snippet{sn})
	if err != nil {
		return Snippet{}, err
	}
	return added[0], nil
}

// ImportSnippets saves several snippets at once.
func (s *Store) ImportSnippets(ctx context.Context, snippets []Snippet) ([]Snippet, error) {
	existing, err := s.Snippets(ctx)
	if err != nil {
		return nil, err
	}

	added := make([]Snippet, 0, len(snippets))
	for _, sn := range snippets {
		if strings.TrimSpace(sn.Name) == "" {
			return nil, errors.New("snippet name is required")
		}
		if sn.Language == "" {
			sn.Language = "text"
		}
		if !lo.Contains(SnippetLanguages, sn.Language) {
			return nil, fmt.Errorf("unsupported snippet language %q (want one of %s)", sn.Language, strings.Join(SnippetLanguages, ", "))
		}
		sn.ID = uuid.NewString()
		if sn.CreatedAt.IsZero() {
			sn.CreatedAt = time.Now().UTC()
		}
		added = append(added, sn)
	}

	if err := s.SetJSON(ctx, KeySnippets, append(existing, added...)); err != nil {
		return nil, err
	}
	return added, nil
}

// GetSnippet finds a snippet by ID, ID prefix or exact name.
func (s *Store) GetSnippet(ctx context.Context, ref string) (Snippet, error) {
	all, err := s.Snippets(ctx)
	if err != nil {
		return Snippet{}, err
	}
	sn, ok := findSnippet(all, ref)
	if !ok {
		return Snippet{}, fmt.Errorf("%w: snippet %s", ErrNotFound, ref)
	}
	return sn, nil
}

// RemoveSnippet deletes a snippet by ID, ID prefix or exact name.
func (s *Store) RemoveSnippet(ctx context.Context, ref string) error {
	all, err := s.Snippets(ctx)
	if err != nil {
		return err
	}
	sn, ok := findSnippet(all, ref)
	if !ok {
		return fmt.Errorf("%w: snippet %s", ErrNotFound, ref)
	}
	rest := lo.Reject(all, func(x Snippet, _ int) bool { return x.ID == sn.ID })
	return s.SetJSON(ctx, KeySnippets, rest)
}

func findSnippet(all []Snippet, ref string) (Snippet, bool) {
	if ref == "" {
		return Snippet{}, false
	}
	if sn, ok := lo.Find(all, func(x Snippet) bool { return x.ID == ref || x.Name == ref }); ok {
		return sn, true
	}
	matches := lo.Filter(all, func(x Snippet, _ int) bool { return strings.HasPrefix(x.ID, ref) })
	if len(matches) == 1 {
		return matches[0], true
	}
	return Snippet{}, false
}

// Favorite is a bookmarked selector.
type Favorite struct {
	Selector  string    `json:"selector"`
	Label     string    `json:"label,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Favorites returns all favorites in insertion order.
func (s *Store) Favorites(ctx context.Context) ([]Favorite, error) {
	var out []Favorite
	err := s.GetJSON(ctx, KeyFavorites, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}

// AddFavorite saves f. Adding a selector that is already a favorite for the
// same URL replaces the old entry.
func (s *Store) AddFavorite(ctx context.Context, f Favorite) error {
	if strings.TrimSpace(f.Selector) == "" {
		return errors.New("selector is required")
	}
	all, err := s.Favorites(ctx)
	if err != nil {
		return err
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	all = lo.Reject(all, func(x Favorite, _ int) bool { return x.Selector == f.Selector && x.URL == f.URL })
	return s.SetJSON(ctx, KeyFavorites, append(all, f))
}

// RemoveFavorite deletes every favorite with the given selector.
func (s *Store) RemoveFavorite(ctx context.Context, selector string) error {
	all, err := s.Favorites(ctx)
	if err != nil {
		return err
	}
	rest := lo.Reject(all, func(x Favorite, _ int) bool { return x.Selector == selector })
	if len(rest) == len(all) {
		return fmt.Errorf("%w: favorite %s", ErrNotFound, selector)
	}
	return s.SetJSON(ctx, KeyFavorites, rest)
}
