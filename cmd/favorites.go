package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/csae-toolkit/csae/internal/page"
	"github.com/csae-toolkit/csae/internal/store"
	"github.com/csae-toolkit/csae/pkg/selector"
	"github.com/csae-toolkit/csae/pkg/table"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
)

// FavoriteStore defines the subset of the store used for favorites.
type FavoriteStore interface {
	Favorites(ctx context.Context) ([]store.Favorite, error)
	AddFavorite(ctx context.Context, f store.Favorite) error
	RemoveFavorite(ctx context.Context, selector string) error
}

// FavoritesCmd handles favorite selector operations.
type FavoritesCmd struct {
	favorites FavoriteStore
	load      DocumentLoader
	out       io.Writer
}

// AddFavoriteInput holds input for adding a favorite.
type AddFavoriteInput struct {
	Selector string
	Label    string
	URL      string
	// Check validates the selector against this document before saving.
	Check string
}

// Add saves a favorite selector.
func (c FavoritesCmd) Add(ctx context.Context, in AddFavoriteInput) error {
	if _, err := selector.Query(&html.Node{Type: html.DocumentNode}, in.Selector); err != nil {
		return err
	}

	if in.Check != "" {
		doc, err := c.load(ctx, in.Check)
		if err != nil {
			return err
		}
		u := selector.ValidateUniqueness(doc.Root, in.Selector)
		switch {
		case u.Err != nil:
			return u.Err
		case u.Count == 0:
			return fmt.Errorf("%s matches no elements in %s", in.Selector, in.Check)
		case !u.IsUnique:
			pterm.Warning.Printf("%s matches %d elements in %s\n", in.Selector, u.Count, in.Check)
		}
		if in.URL == "" && page.IsURL(in.Check) {
			in.URL = in.Check
		}
	}

	if err := c.favorites.AddFavorite(ctx, store.Favorite{
		Selector: in.Selector,
		Label:    in.Label,
		URL:      in.URL,
	}); err != nil {
		return err
	}
	pterm.Success.Printf("Saved favorite %s\n", in.Selector)
	return nil
}

// ListFavoritesInput holds input for listing favorites.
type ListFavoritesInput struct {
	URL    string
	Output string
}

type favoriteView struct {
	store.Favorite
	Score int `json:"score"`
}

// List prints favorites with their reliability score.
func (c FavoritesCmd) List(ctx context.Context, in ListFavoritesInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	all, err := c.favorites.Favorites(ctx)
	if err != nil {
		return err
	}
	if in.URL != "" {
		all = lo.Filter(all, func(f store.Favorite, _ int) bool { return f.URL == in.URL })
	}
	views := lo.Map(all, func(f store.Favorite, _ int) favoriteView {
		return favoriteView{Favorite: f, Score: selector.Score(f.Selector).Score}
	})

	if in.Output == "json" {
		return util.PrintJSON(c.out, views)
	}

	if len(views) == 0 {
		pterm.Info.Println("No favorites found")
		return nil
	}

	rows := pterm.TableData{{"Selector", "Label", "URL", "Score", "Added"}}
	for _, v := range views {
		rows = append(rows, []string{
			v.Selector,
			util.OrDash(v.Label),
			util.OrDash(v.URL),
			fmt.Sprintf("%d", v.Score),
			util.FormatTime(v.CreatedAt),
		})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// Remove deletes a favorite.
func (c FavoritesCmd) Remove(ctx context.Context, sel string) error {
	if err := c.favorites.RemoveFavorite(ctx, sel); err != nil {
		return err
	}
	pterm.Success.Printf("Favorite %s deleted\n", sel)
	return nil
}

// --- Cobra wiring ---

var favoritesCmd = &cobra.Command{
	Use:     "favorites",
	Aliases: []string{"fav"},
	Short:   "Manage favorite selectors",
}

var favoritesAddCmd = &cobra.Command{
	Use:   "add <selector>",
	Short: "Save a favorite selector",
	Args:  cobra.ExactArgs(1),
	RunE:  runFavoritesAdd,
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite selectors",
	Args:  cobra.NoArgs,
	RunE:  runFavoritesList,
}

var favoritesRmCmd = &cobra.Command{
	Use:     "rm <selector>",
	Aliases: []string{"delete"},
	Short:   "Delete a favorite selector",
	Args:    cobra.ExactArgs(1),
	RunE:    runFavoritesRm,
}

func init() {
	favoritesCmd.AddCommand(favoritesAddCmd)
	favoritesCmd.AddCommand(favoritesListCmd)
	favoritesCmd.AddCommand(favoritesRmCmd)

	favoritesAddCmd.Flags().String("label", "", "Human readable label")
	favoritesAddCmd.Flags().String("url", "", "Page the selector belongs to")
	favoritesAddCmd.Flags().String("check", "", "Validate the selector against this document first")
	favoritesAddCmd.Flags().Bool("render", false, "Render --check URLs in headless Chrome")

	favoritesListCmd.Flags().String("url", "", "Only list favorites for this page")
	favoritesListCmd.Flags().StringP("output", "o", "", "Output format: json for raw response")
}

func withFavorites(cmd *cobra.Command, fn func(c FavoritesCmd) error) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(FavoritesCmd{favorites: s, load: loaderFor(cmd), out: cmd.OutOrStdout()})
}

func runFavoritesAdd(cmd *cobra.Command, args []string) error {
	label, _ := cmd.Flags().GetString("label")
	url, _ := cmd.Flags().GetString("url")
	check, _ := cmd.Flags().GetString("check")

	return withFavorites(cmd, func(c FavoritesCmd) error {
		return c.Add(cmd.Context(), AddFavoriteInput{
			Selector: args[0],
			Label:    label,
			URL:      url,
			Check:    check,
		})
	})
}

func runFavoritesList(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	url, _ := cmd.Flags().GetString("url")

	return withFavorites(cmd, func(c FavoritesCmd) error {
		return c.List(cmd.Context(), ListFavoritesInput{URL: url, Output: output})
	})
}

func runFavoritesRm(cmd *cobra.Command, args []string) error {
	return withFavorites(cmd, func(c FavoritesCmd) error {
		return c.Remove(cmd.Context(), args[0])
	})
}
