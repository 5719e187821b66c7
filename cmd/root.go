package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/csae-toolkit/csae/internal/config"
	"github.com/csae-toolkit/csae/internal/page"
	"github.com/csae-toolkit/csae/internal/store"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Metadata describes the running binary. It is set by main from build flags.
type Metadata struct {
	Version string
	Commit  string
	Date    string
}

var metadata = Metadata{Version: "dev"}

type ctxKey int

const (
	configKey ctxKey = iota
)

var rootCmd = &cobra.Command{
	Use:   "csae",
	Short: "Developer toolkit for CSS selectors, DOM edits and page inspection",
	Long: `csae works on HTML documents loaded from files, stdin, URLs or a headless
Chrome render. It derives and validates CSS selectors, applies reversible
edits with undo/redo, audits accessibility, detects the tech stack, formats
JSON and keeps snippets and favourite selectors in a local store.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().String("store", "", "Path to the csae store (overrides CSAE_STORE)")

	rootCmd.AddCommand(selectorCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(jsonCmd)
	rootCmd.AddCommand(snippetsCmd)
	rootCmd.AddCommand(favoritesCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statusCmd)
}

// normalizeFlagName accepts --max_steps for --max-steps.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute runs the root command.
func Execute(m Metadata) {
	if m.Version != "" {
		metadata = m
	}
	if err := fang.Execute(context.Background(), rootCmd,
		fang.WithVersion(metadata.Version),
		fang.WithCommit(metadata.Commit),
	); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		pterm.EnableDebugMessages()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if path, _ := cmd.Flags().GetString("store"); path != "" {
		cfg.Store = path
	}
	pterm.Debug.Printfln("Using config home %s, store %s", cfg.Home, cfg.Store)
	applyStoredSettings(cmd.Context(), cfg)

	cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
	return nil
}

// applyStoredSettings overlays settings persisted with "csae settings set"
// on cfg. A missing or unreadable store leaves cfg unchanged.
func applyStoredSettings(ctx context.Context, cfg *config.Config) {
	if _, err := os.Stat(cfg.Store); err != nil {
		return
	}
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		pterm.Debug.Printfln("Skipping stored settings: %v", err)
		return
	}
	defer s.Close()

	settings, err := s.Settings(ctx)
	if err != nil {
		pterm.Debug.Printfln("Skipping stored settings: %v", err)
		return
	}
	if v, ok := settings[store.SettingOutput]; ok {
		cfg.Output = v
	}
	if v, ok := settings[store.SettingRender]; ok {
		cfg.Browser.Render = v == "true"
	}
	if n, err := strconv.Atoi(settings[store.SettingHistoryMaxSteps]); err == nil && n > 0 {
		cfg.History.MaxSteps = n
	}
}

// getConfig returns the configuration loaded by the root command, or the
// defaults when a command runs without it (tests).
func getConfig(cmd *cobra.Command) *config.Config {
	if ctx := cmd.Context(); ctx != nil {
		if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
			return cfg
		}
	}
	cfg, err := config.Load()
	if err != nil {
		pterm.Warning.Printfln("Falling back to defaults: %v", err)
		return &config.Config{History: config.HistoryConfig{MaxSteps: 50}, Output: "text"}
	}
	return cfg
}

// openStore opens the store configured for cmd. The caller closes it.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg := getConfig(cmd)
	s, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		if errors.Is(err, store.ErrIncompatible) {
			pterm.Error.Println("The store was written by a newer csae. Upgrade csae or point --store elsewhere.")
		}
		return nil, err
	}
	return s, nil
}

// pageOptions builds document loading options from configuration and the
// command's --render flag.
func pageOptions(cmd *cobra.Command) page.Options {
	cfg := getConfig(cmd)
	opts := page.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  cfg.Fetch.MaxBytes,
		Render:    cfg.Browser.Render,
	}
	if f := cmd.Flags().Lookup("render"); f != nil && f.Changed {
		opts.Render, _ = cmd.Flags().GetBool("render")
	}
	if opts.Render {
		opts.Renderer = page.Chrome{
			Bin:       cfg.Browser.Bin,
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.Fetch.Timeout,
			Stealth:   !cfg.Browser.DisableStealth,
		}
	}
	return opts
}

// loaderFor returns a DocumentLoader bound to cmd's options.
func loaderFor(cmd *cobra.Command) DocumentLoader {
	opts := pageOptions(cmd)
	return func(ctx context.Context, src string) (*page.Document, error) {
		return page.Load(ctx, src, opts)
	}
}

// DocumentLoader loads a document from a path, "-" or URL.
type DocumentLoader func(ctx context.Context, src string) (*page.Document, error)

// outputFormat reads --output and falls back to the configured default.
func outputFormat(cmd *cobra.Command) (string, error) {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = getConfig(cmd).Output
	}
	output = strings.ToLower(output)
	if output == "text" {
		output = ""
	}
	if output != "" && output != "json" {
		return "", fmt.Errorf("unsupported --output value: use 'json'")
	}
	return output, nil
}
