package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/csae-toolkit/csae/internal/page"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// JSONCmd formats and queries JSON documents.
type JSONCmd struct {
	stdin io.Reader
	out   io.Writer
}

// JSONFormatInput holds input for formatting JSON.
type JSONFormatInput struct {
	Source   string
	Indent   int // 0 compacts
	SortKeys bool
	Compact  bool
}

// Format re-indents (or compacts) a JSON document.
func (c JSONCmd) Format(ctx context.Context, in JSONFormatInput) error {
	data, err := c.read(in.Source)
	if err != nil {
		return err
	}
	if in.Indent < 0 || in.Indent > 8 {
		return fmt.Errorf("invalid --indent %d: use 0 to 8", in.Indent)
	}

	compact := in.Compact || in.Indent == 0
	out, err := util.FormatJSON(data, util.JSONFormat{
		Indent:   strings.Repeat(" ", in.Indent),
		SortKeys: in.SortKeys,
		Compact:  compact,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", util.OrDash(in.Source), err)
	}
	if compact {
		out = append(out, '\n')
	}
	return util.WriteJSON(c.out, out)
}

// JSONQueryInput holds input for querying JSON.
type JSONQueryInput struct {
	Source string
	Path   string
	Raw    bool
}

// Query prints the value at a gjson path. Strings print unquoted unless Raw
// is set; objects and arrays print indented.
func (c JSONCmd) Query(ctx context.Context, in JSONQueryInput) error {
	data, err := c.read(in.Source)
	if err != nil {
		return err
	}
	res, err := util.QueryJSON(data, in.Path)
	if err != nil {
		return err
	}

	switch {
	case in.Raw:
		_, err = fmt.Fprintln(c.out, res.Raw)
	case res.Type == gjson.JSON:
		err = util.WriteJSON(c.out, pretty.Pretty([]byte(res.Raw)))
	default:
		_, err = fmt.Fprintln(c.out, res.String())
	}
	return err
}

func (c JSONCmd) read(src string) ([]byte, error) {
	if src == "" || src == page.Stdin {
		data, err := io.ReadAll(c.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", src, err)
	}
	return data, nil
}

// --- Cobra wiring ---

var jsonCmd = &cobra.Command{
	Use:   "json",
	Short: "Format and query JSON",
}

var jsonFmtCmd = &cobra.Command{
	Use:   "fmt [file]",
	Short: "Pretty-print or compact JSON",
	Long:  "Pretty-print or compact JSON read from [file], or stdin when omitted or \"-\".",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJSONFmt,
}

var jsonQueryCmd = &cobra.Command{
	Use:   "query <path> [file]",
	Short: "Extract a value with a gjson path",
	Example: `  csae json query user.name data.json
  curl -s https://api.example.com/items | csae json query 'items.#.id'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runJSONQuery,
}

func init() {
	jsonCmd.AddCommand(jsonFmtCmd)
	jsonCmd.AddCommand(jsonQueryCmd)

	jsonFmtCmd.Flags().Int("indent", 2, "Spaces per indent level")
	jsonFmtCmd.Flags().Bool("sort-keys", false, "Sort object keys")
	jsonFmtCmd.Flags().Bool("compact", false, "Remove all insignificant whitespace")
	jsonQueryCmd.Flags().Bool("raw", false, "Print the raw JSON value")
}

func runJSONFmt(cmd *cobra.Command, args []string) error {
	indent, _ := cmd.Flags().GetInt("indent")
	sortKeys, _ := cmd.Flags().GetBool("sort-keys")
	compact, _ := cmd.Flags().GetBool("compact")

	src := ""
	if len(args) > 0 {
		src = args[0]
	}
	c := JSONCmd{stdin: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	return c.Format(cmd.Context(), JSONFormatInput{
		Source:   src,
		Indent:   indent,
		SortKeys: sortKeys,
		Compact:  compact,
	})
}

func runJSONQuery(cmd *cobra.Command, args []string) error {
	raw, _ := cmd.Flags().GetBool("raw")

	src := ""
	if len(args) > 1 {
		src = args[1]
	}
	c := JSONCmd{stdin: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	return c.Query(cmd.Context(), JSONQueryInput{Source: src, Path: args[0], Raw: raw})
}
