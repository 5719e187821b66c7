package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/csae-toolkit/csae/internal/store"
	"github.com/csae-toolkit/csae/pkg/table"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// SnippetStore defines the subset of the store used for snippets.
type SnippetStore interface {
	Snippets(ctx context.Context) ([]store.Snippet, error)
	AddSnippet(ctx context.Context, sn store.Snippet) (store.Snippet, error)
	ImportSnippets(ctx context.Context, snippets []store.Snippet) ([]store.Snippet, error)
	GetSnippet(ctx context.Context, ref string) (store.Snippet, error)
	RemoveSnippet(ctx context.Context, ref string) error
}

// SnippetsCmd handles snippet operations.
type SnippetsCmd struct {
	snippets SnippetStore
	stdin    io.Reader
	out      io.Writer
}

// AddSnippetInput holds input for adding a snippet.
type AddSnippetInput struct {
	Name     string
	Language string
	Code     string
	File     string
	Output   string
}

// Add saves a snippet. The code comes from Code, File, or stdin, in that order.
func (c SnippetsCmd) Add(ctx context.Context, in AddSnippetInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	code := in.Code
	lang := in.Language
	name := in.Name
	switch {
	case code != "":
	case in.File != "":
		data, err := os.ReadFile(in.File)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", in.File, err)
		}
		if len(data) > util.MaxSnippetBytes {
			return fmt.Errorf("%s is larger than %s", in.File, util.FormatBytes(util.MaxSnippetBytes))
		}
		code = string(data)
		if lang == "" {
			lang = util.SnippetLanguage(in.File)
		}
		if name == "" {
			name = filepath.Base(in.File)
		}
	default:
		data, err := io.ReadAll(io.LimitReader(c.stdin, util.MaxSnippetBytes+1))
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		if len(data) > util.MaxSnippetBytes {
			return fmt.Errorf("snippet is larger than %s", util.FormatBytes(util.MaxSnippetBytes))
		}
		code = string(data)
	}
	if strings.TrimSpace(code) == "" {
		return errors.New("snippet code is empty")
	}
	if lang != "" && !lo.Contains(store.SnippetLanguages, lang) {
		return fmt.Errorf("invalid language %q: use one of %s", lang, strings.Join(store.SnippetLanguages, ", "))
	}

	sn, err := c.snippets.AddSnippet(ctx, store.Snippet{Name: name, Language: lang, Code: code})
	if err != nil {
		return err
	}

	if in.Output == "json" {
		return util.PrintJSON(c.out, sn)
	}
	pterm.Success.Printf("Saved snippet %s (%s)\n", sn.Name, shortID(sn.ID))
	return nil
}

// ListSnippetsInput holds input for listing snippets.
type ListSnippetsInput struct {
	Language string
	Output   string
}

// List prints saved snippets.
func (c SnippetsCmd) List(ctx context.Context, in ListSnippetsInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	all, err := c.snippets.Snippets(ctx)
	if err != nil {
		return err
	}
	if in.Language != "" {
		all = lo.Filter(all, func(sn store.Snippet, _ int) bool { return sn.Language == in.Language })
	}

	if in.Output == "json" {
		if all == nil {
			all = []store.Snippet{}
		}
		return util.PrintJSON(c.out, all)
	}

	if len(all) == 0 {
		pterm.Info.Println("No snippets found")
		return nil
	}

	rows := pterm.TableData{{"ID", "Name", "Language", "Size", "Created", "Preview"}}
	for _, sn := range all {
		rows = append(rows, []string{
			shortID(sn.ID),
			sn.Name,
			sn.Language,
			util.FormatBytes(int64(len(sn.Code))),
			util.FormatTime(sn.CreatedAt),
			util.Truncate(sn.Code, 40),
		})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// SnippetRefInput identifies a snippet by ID, ID prefix or name.
type SnippetRefInput struct {
	Ref    string
	Output string
}

// Show prints a snippet's code.
func (c SnippetsCmd) Show(ctx context.Context, in SnippetRefInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	sn, err := c.snippets.GetSnippet(ctx, in.Ref)
	if err != nil {
		return err
	}
	if in.Output == "json" {
		return util.PrintJSON(c.out, sn)
	}

	code := sn.Code
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	_, err = io.WriteString(c.out, code)
	return err
}

// Remove deletes a snippet.
func (c SnippetsCmd) Remove(ctx context.Context, in SnippetRefInput) error {
	if err := c.snippets.RemoveSnippet(ctx, in.Ref); err != nil {
		return err
	}
	pterm.Success.Printf("Snippet %s deleted\n", in.Ref)
	return nil
}

// ImportSnippetsInput holds input for importing a directory.
type ImportSnippetsInput struct {
	Dir             string
	DryRun          bool
	IncludeHidden   bool
	ExcludeDefaults bool
	Verbose         bool
	Output          string
}

// Import saves every supported file under a directory as a snippet.
func (c SnippetsCmd) Import(ctx context.Context, in ImportSnippetsInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	info, err := os.Stat(in.Dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", in.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", in.Dir)
	}

	files, stats, err := util.CollectSnippets(in.Dir, &util.SnippetWalkOptions{
		IncludeHidden:   in.IncludeHidden,
		ExcludeDefaults: in.ExcludeDefaults,
		Verbose:         in.Verbose,
	})
	if err != nil {
		return err
	}
	pterm.Debug.Printfln("Found %d files (%s), skipped %d", stats.FilesFound, util.FormatBytes(stats.BytesFound), stats.FilesSkipped)

	snippets := lo.Map(files, func(f util.SnippetFile, _ int) store.Snippet {
		return store.Snippet{Name: f.Name, Language: f.Language, Code: f.Code}
	})

	if !in.DryRun && len(snippets) > 0 {
		if snippets, err = c.snippets.ImportSnippets(ctx, snippets); err != nil {
			return err
		}
	}

	if in.Output == "json" {
		return util.PrintJSON(c.out, map[string]any{
			"dry_run":  in.DryRun,
			"imported": snippets,
			"skipped":  lo.Ternary(stats.SkippedPaths == nil, []string{}, stats.SkippedPaths),
		})
	}

	if len(snippets) == 0 {
		pterm.Warning.Printf("No snippet files found in %s\n", in.Dir)
		return nil
	}

	rows := pterm.TableData{{"Name", "Language", "Size"}}
	for _, sn := range snippets {
		rows = append(rows, []string{sn.Name, sn.Language, util.FormatBytes(int64(len(sn.Code)))})
	}
	table.PrintTableNoPad(rows, true)

	if in.DryRun {
		pterm.Info.Printf("Dry run: %d snippet(s) would be imported\n", len(snippets))
	} else {
		pterm.Success.Printf("Imported %d snippet(s)\n", len(snippets))
	}
	if stats.FilesSkipped > 0 {
		pterm.Info.Printf("Skipped %d file(s)\n", stats.FilesSkipped)
		for _, p := range stats.SkippedPaths {
			pterm.Debug.Printfln("  skipped %s", p)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// --- Cobra wiring ---

var snippetsCmd = &cobra.Command{
	Use:     "snippets",
	Aliases: []string{"snippet"},
	Short:   "Manage saved code snippets",
}

var snippetsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Save a snippet",
	Long:  "Save a snippet from --code, --file, or stdin.",
	Args:  cobra.NoArgs,
	RunE:  runSnippetsAdd,
}

var snippetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snippets",
	Args:  cobra.NoArgs,
	RunE:  runSnippetsList,
}

var snippetsShowCmd = &cobra.Command{
	Use:   "show <id-or-name>",
	Short: "Print a snippet",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnippetsShow,
}

var snippetsRmCmd = &cobra.Command{
	Use:     "rm <id-or-name>",
	Aliases: []string{"delete"},
	Short:   "Delete a snippet",
	Args:    cobra.ExactArgs(1),
	RunE:    runSnippetsRm,
}

var snippetsImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import CSS, JS and HTML files from a directory",
	Long: `Import every .css, .js, .html, .txt and .md file under <dir> as a snippet.

.gitignore and .ignore files are honoured. node_modules, .git, dist and
coverage directories and minified files are skipped unless
--no-default-exclusions is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnippetsImport,
}

func init() {
	snippetsCmd.AddCommand(snippetsAddCmd)
	snippetsCmd.AddCommand(snippetsListCmd)
	snippetsCmd.AddCommand(snippetsShowCmd)
	snippetsCmd.AddCommand(snippetsRmCmd)
	snippetsCmd.AddCommand(snippetsImportCmd)

	snippetsCmd.PersistentFlags().StringP("output", "o", "", "Output format: json for raw response")

	snippetsAddCmd.Flags().String("name", "", "Snippet name")
	snippetsAddCmd.Flags().String("language", "", "Snippet language (css, js, html, text)")
	snippetsAddCmd.Flags().String("code", "", "Snippet code")
	snippetsAddCmd.Flags().String("file", "", "Read the snippet from a file")
	snippetsAddCmd.MarkFlagsMutuallyExclusive("code", "file")

	snippetsListCmd.Flags().String("language", "", "Only list snippets in this language")

	snippetsImportCmd.Flags().Bool("dry-run", false, "Show what would be imported")
	snippetsImportCmd.Flags().Bool("hidden", false, "Include hidden files and directories")
	snippetsImportCmd.Flags().Bool("no-default-exclusions", false, "Do not skip node_modules, dist, minified files and similar")
	snippetsImportCmd.Flags().Bool("verbose", false, "List skipped files (with --debug)")
}

func withSnippets(cmd *cobra.Command, fn func(c SnippetsCmd) error) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(SnippetsCmd{snippets: s, stdin: cmd.InOrStdin(), out: cmd.OutOrStdout()})
}

func runSnippetsAdd(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")
	language, _ := cmd.Flags().GetString("language")
	code, _ := cmd.Flags().GetString("code")
	file, _ := cmd.Flags().GetString("file")
	if name == "" && file == "" {
		return errors.New("--name is required unless --file is given")
	}

	return withSnippets(cmd, func(c SnippetsCmd) error {
		return c.Add(cmd.Context(), AddSnippetInput{
			Name:     name,
			Language: language,
			Code:     code,
			File:     file,
			Output:   output,
		})
	})
}

func runSnippetsList(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	language, _ := cmd.Flags().GetString("language")

	return withSnippets(cmd, func(c SnippetsCmd) error {
		return c.List(cmd.Context(), ListSnippetsInput{Language: language, Output: output})
	})
}

func runSnippetsShow(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	return withSnippets(cmd, func(c SnippetsCmd) error {
		return c.Show(cmd.Context(), SnippetRefInput{Ref: args[0], Output: output})
	})
}

func runSnippetsRm(cmd *cobra.Command, args []string) error {
	return withSnippets(cmd, func(c SnippetsCmd) error {
		return c.Remove(cmd.Context(), SnippetRefInput{Ref: args[0]})
	})
}

func runSnippetsImport(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	hidden, _ := cmd.Flags().GetBool("hidden")
	noDefaults, _ := cmd.Flags().GetBool("no-default-exclusions")
	verbose, _ := cmd.Flags().GetBool("verbose")

	return withSnippets(cmd, func(c SnippetsCmd) error {
		return c.Import(cmd.Context(), ImportSnippetsInput{
			Dir:             args[0],
			DryRun:          dryRun,
			IncludeHidden:   hidden,
			ExcludeDefaults: noDefaults,
			Verbose:         verbose,
			Output:          output,
		})
	})
}
