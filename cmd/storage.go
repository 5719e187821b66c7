package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/csae-toolkit/csae/internal/store"
	"github.com/csae-toolkit/csae/pkg/table"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// KVStore defines the subset of the store used for raw key inspection.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]store.Entry, error)
	Clear(ctx context.Context, prefix string) (int64, error)
}

// StorageCmd inspects and clears the key-value store.
type StorageCmd struct {
	kv  KVStore
	out io.Writer
}

// StorageGetInput holds input for reading a key.
type StorageGetInput struct {
	Key string
}

// Get prints the value stored under a key. JSON values are indented.
func (c StorageCmd) Get(ctx context.Context, in StorageGetInput) error {
	v, err := c.kv.Get(ctx, in.Key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			pterm.Info.Printf("Key '%s' not found\n", in.Key)
			return nil
		}
		return err
	}
	if gjson.Valid(v) {
		return util.WriteJSON(c.out, pretty.Pretty([]byte(v)))
	}
	_, err = fmt.Fprintln(c.out, v)
	return err
}

// StorageSetInput holds input for writing a key.
type StorageSetInput struct {
	Key   string
	Value string
	// JSON requires Value to be valid JSON and stores it compacted.
	JSON bool
}

// Set stores a value, replacing any previous one.
func (c StorageCmd) Set(ctx context.Context, in StorageSetInput) error {
	if lo.Contains([]string{store.KeySettings, store.KeySnippets, store.KeyFavorites}, in.Key) {
		pterm.Warning.Printf("'%s' holds csae records; prefer the dedicated commands\n", in.Key)
	}
	value := in.Value
	if in.JSON {
		if !gjson.Valid(value) {
			return util.ErrInvalidJSON
		}
		value = string(pretty.Ugly([]byte(value)))
	}
	if err := c.kv.Set(ctx, in.Key, value); err != nil {
		return err
	}
	pterm.Success.Printf("Set %s\n", in.Key)
	return nil
}

// Delete removes a single key.
func (c StorageCmd) Delete(ctx context.Context, key string) error {
	if err := c.kv.Delete(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			pterm.Info.Printf("Key '%s' not found\n", key)
			return nil
		}
		return err
	}
	pterm.Success.Printf("Deleted %s\n", key)
	return nil
}

// StorageKeysInput holds input for listing keys.
type StorageKeysInput struct {
	Prefix string
	Output string
}

// Keys lists stored keys.
func (c StorageCmd) Keys(ctx context.Context, in StorageKeysInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	entries, err := c.kv.Keys(ctx, in.Prefix)
	if err != nil {
		return err
	}

	if in.Output == "json" {
		if entries == nil {
			entries = []store.Entry{}
		}
		return util.PrintJSON(c.out, entries)
	}

	if len(entries) == 0 {
		pterm.Info.Println("No keys found")
		return nil
	}

	rows := pterm.TableData{{"Key", "Size", "Updated"}}
	for _, e := range entries {
		rows = append(rows, []string{e.Key, util.FormatBytes(int64(e.Size)), util.FormatTime(e.UpdatedAt)})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// StorageClearInput holds input for clearing keys.
type StorageClearInput struct {
	Prefix      string
	SkipConfirm bool
}

// Clear removes every key with the given prefix, or all keys.
func (c StorageCmd) Clear(ctx context.Context, in StorageClearInput) error {
	if !in.SkipConfirm {
		msg := "Are you sure you want to clear the whole store?"
		if in.Prefix != "" {
			msg = fmt.Sprintf("Are you sure you want to clear all keys starting with '%s'?", in.Prefix)
		}
		pterm.DefaultInteractiveConfirm.DefaultText = msg
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			pterm.Info.Println("Clear cancelled")
			return nil
		}
	}

	n, err := c.kv.Clear(ctx, in.Prefix)
	if err != nil {
		return err
	}
	pterm.Success.Printf("Cleared %d key(s)\n", n)
	return nil
}

// SettingsStore defines the subset of the store used for settings.
type SettingsStore interface {
	Settings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, name, value string) error
}

// SettingsCmd manages persisted settings.
type SettingsCmd struct {
	settings SettingsStore
	out      io.Writer
}

var settingNames = []string{store.SettingHistoryMaxSteps, store.SettingOutput, store.SettingRender}

// List prints every known setting, marking unset ones.
func (c SettingsCmd) List(ctx context.Context, output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	settings, err := c.settings.Settings(ctx)
	if err != nil {
		return err
	}
	if output == "json" {
		return util.PrintJSON(c.out, settings)
	}

	names := lo.Uniq(append(append([]string{}, settingNames...), lo.Keys(settings)...))
	sort.Strings(names)
	rows := pterm.TableData{{"Setting", "Value"}}
	for _, n := range names {
		rows = append(rows, []string{n, util.OrDash(settings[n])})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// Set persists a setting. An empty value resets it.
func (c SettingsCmd) Set(ctx context.Context, name, value string) error {
	if err := c.settings.SetSetting(ctx, name, value); err != nil {
		return err
	}
	if value == "" {
		pterm.Success.Printf("Reset %s\n", name)
	} else {
		pterm.Success.Printf("Set %s to %s\n", name, value)
	}
	return nil
}

// --- Cobra wiring ---

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and clear the local key-value store",
}

var storageGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored value",
	Args:  cobra.ExactArgs(1),
	RunE:  runStorageGet,
}

var storageSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value",
	Args:  cobra.ExactArgs(2),
	RunE:  runStorageSet,
}

var storageRmCmd = &cobra.Command{
	Use:     "rm <key>",
	Aliases: []string{"delete"},
	Short:   "Delete a key",
	Args:    cobra.ExactArgs(1),
	RunE:    runStorageRm,
}

var storageKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List stored keys",
	Args:  cobra.NoArgs,
	RunE:  runStorageKeys,
}

var storageClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove stored keys",
	Long:  "Remove every key, or every key starting with --prefix.",
	Args:  cobra.NoArgs,
	RunE:  runStorageClear,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persisted settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsSetCmd = &cobra.Command{
	Use:       "set <name> [value]",
	Short:     "Set a setting, or reset it when value is omitted",
	Long:      "Known settings: history_max_steps (positive integer), output (json or text), render (true or false).",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: settingNames,
	RunE:      runSettingsSet,
}

func init() {
	storageCmd.AddCommand(storageGetCmd)
	storageCmd.AddCommand(storageSetCmd)
	storageCmd.AddCommand(storageRmCmd)
	storageCmd.AddCommand(storageKeysCmd)
	storageCmd.AddCommand(storageClearCmd)

	storageSetCmd.Flags().Bool("json", false, "Validate the value as JSON and store it compacted")
	storageKeysCmd.Flags().String("prefix", "", "Only list keys with this prefix")
	storageKeysCmd.Flags().StringP("output", "o", "", "Output format: json for raw response")
	storageClearCmd.Flags().String("prefix", "", "Only clear keys with this prefix")
	storageClearCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsListCmd.Flags().StringP("output", "o", "", "Output format: json for raw response")
}

func withStorage(cmd *cobra.Command, fn func(s *store.Store) error) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func runStorageGet(cmd *cobra.Command, args []string) error {
	return withStorage(cmd, func(s *store.Store) error {
		c := StorageCmd{kv: s, out: cmd.OutOrStdout()}
		return c.Get(cmd.Context(), StorageGetInput{Key: args[0]})
	})
}

func runStorageSet(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	return withStorage(cmd, func(s *store.Store) error {
		c := StorageCmd{kv: s, out: cmd.OutOrStdout()}
		return c.Set(cmd.Context(), StorageSetInput{Key: args[0], Value: args[1], JSON: asJSON})
	})
}

func runStorageRm(cmd *cobra.Command, args []string) error {
	return withStorage(cmd, func(s *store.Store) error {
		c := StorageCmd{kv: s, out: cmd.OutOrStdout()}
		return c.Delete(cmd.Context(), args[0])
	})
}

func runStorageKeys(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	prefix, _ := cmd.Flags().GetString("prefix")
	return withStorage(cmd, func(s *store.Store) error {
		c := StorageCmd{kv: s, out: cmd.OutOrStdout()}
		return c.Keys(cmd.Context(), StorageKeysInput{Prefix: prefix, Output: output})
	})
}

func runStorageClear(cmd *cobra.Command, args []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")
	skip, _ := cmd.Flags().GetBool("yes")
	return withStorage(cmd, func(s *store.Store) error {
		c := StorageCmd{kv: s, out: cmd.OutOrStdout()}
		return c.Clear(cmd.Context(), StorageClearInput{Prefix: prefix, SkipConfirm: skip})
	})
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	return withStorage(cmd, func(s *store.Store) error {
		c := SettingsCmd{settings: s, out: cmd.OutOrStdout()}
		return c.List(cmd.Context(), output)
	})
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	value := ""
	if len(args) > 1 {
		value = args[1]
	}
	return withStorage(cmd, func(s *store.Store) error {
		c := SettingsCmd{settings: s, out: cmd.OutOrStdout()}
		return c.Set(cmd.Context(), args[0], value)
	})
}
