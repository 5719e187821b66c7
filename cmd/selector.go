package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/csae-toolkit/csae/pkg/selector"
	"github.com/csae-toolkit/csae/pkg/table"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
)

// SelectorCmd handles selector derivation, conversion and validation.
type SelectorCmd struct {
	load DocumentLoader
	out  io.Writer
}

type derivedSelector struct {
	Selector string `json:"selector"`
	XPath    string `json:"xpath"`
	JSPath   string `json:"jspath"`
	Unique   bool   `json:"unique"`
	Matches  int    `json:"matches"`
}

// DeriveInput holds input for deriving selectors.
type DeriveInput struct {
	Source string
	Query  string
	Limit  int
	Output string
}

// Derive derives a selector for every element matching the query.
func (c SelectorCmd) Derive(ctx context.Context, in DeriveInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	doc, err := c.load(ctx, in.Source)
	if err != nil {
		return err
	}
	nodes, err := doc.All(in.Query)
	if err != nil {
		return err
	}
	if in.Limit > 0 && len(nodes) > in.Limit {
		nodes = nodes[:in.Limit]
	}

	derived := lo.Map(nodes, func(n *html.Node, _ int) derivedSelector {
		sel := selector.Derive(n)
		u := selector.ValidateUniqueness(doc.Root, sel)
		return derivedSelector{
			Selector: sel,
			XPath:    selector.CSSToXPath(sel),
			JSPath:   selector.CSSToJSPath(sel),
			Unique:   u.IsUnique,
			Matches:  u.Count,
		}
	})

	if in.Output == "json" {
		return util.PrintJSON(c.out, derived)
	}

	if len(derived) == 0 {
		pterm.Info.Printf("No elements match %s\n", in.Query)
		return nil
	}

	rows := pterm.TableData{{"#", "Selector", "Unique", "XPath"}}
	for i, d := range derived {
		unique := "yes"
		if !d.Unique {
			unique = fmt.Sprintf("no (%d)", d.Matches)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), d.Selector, unique, d.XPath})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// ConvertInput holds input for the pure selector transforms.
type ConvertInput struct {
	Selector string
	Output   string
}

// XPath prints the XPath form of a selector.
func (c SelectorCmd) XPath(ctx context.Context, in ConvertInput) error {
	return c.printConversion(in, "xpath", selector.CSSToXPath(in.Selector))
}

// JSPath prints the document.querySelector form of a selector.
func (c SelectorCmd) JSPath(ctx context.Context, in ConvertInput) error {
	return c.printConversion(in, "jspath", selector.CSSToJSPath(in.Selector))
}

// Optimize prints the shortened form of a selector.
func (c SelectorCmd) Optimize(ctx context.Context, in ConvertInput) error {
	return c.printConversion(in, "optimized", selector.Optimize(in.Selector))
}

func (c SelectorCmd) printConversion(in ConvertInput, key, value string) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	if in.Output == "json" {
		return util.PrintJSON(c.out, map[string]string{"selector": in.Selector, key: value})
	}
	_, err := fmt.Fprintln(c.out, value)
	return err
}

// Score prints the reliability estimate of a selector.
func (c SelectorCmd) Score(ctx context.Context, in ConvertInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	r := selector.Score(in.Selector)
	if in.Output == "json" {
		return util.PrintJSON(c.out, r)
	}

	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Selector", in.Selector})
	rows = append(rows, []string{"Score", strconv.Itoa(r.Score)})
	rows = append(rows, []string{"Rating", string(r.Rating)})
	rows = append(rows, []string{"Feedback", util.JoinOrDash(r.Feedback...)})
	table.PrintTableNoPad(rows, true)
	return nil
}

// ValidateInput holds input for checking a selector against a document.
type ValidateInput struct {
	Source   string
	Selector string
	Output   string
}

type validation struct {
	Selector string   `json:"selector"`
	Valid    bool     `json:"valid"`
	Unique   bool     `json:"unique"`
	Count    int      `json:"count"`
	Error    string   `json:"error,omitempty"`
	Elements []string `json:"elements"`
}

// Validate reports how many elements a selector matches. In JSON mode a
// malformed selector is part of the payload rather than an error.
func (c SelectorCmd) Validate(ctx context.Context, in ValidateInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	doc, err := c.load(ctx, in.Source)
	if err != nil {
		return err
	}

	u := selector.ValidateUniqueness(doc.Root, in.Selector)
	v := validation{
		Selector: in.Selector,
		Valid:    u.Err == nil,
		Unique:   u.IsUnique,
		Count:    u.Count,
		Elements: lo.Map(u.Elements, func(n *html.Node, _ int) string { return selector.Derive(n) }),
	}
	if u.Err != nil {
		v.Error = u.Err.Error()
	}

	if in.Output == "json" {
		return util.PrintJSON(c.out, v)
	}

	switch {
	case u.Err != nil:
		pterm.Error.Printf("Invalid selector: %v\n", u.Err)
		return u.Err
	case u.Count == 0:
		pterm.Warning.Printf("%s matches no elements\n", in.Selector)
	case u.IsUnique:
		pterm.Success.Printf("%s matches exactly one element\n", in.Selector)
	default:
		pterm.Warning.Printf("%s matches %d elements\n", in.Selector, u.Count)
		rows := pterm.TableData{{"#", "Element"}}
		for i, e := range v.Elements {
			rows = append(rows, []string{strconv.Itoa(i + 1), e})
		}
		table.PrintTableNoPad(rows, true)
	}
	return nil
}

// AlternativesInput holds input for listing alternative selectors.
type AlternativesInput struct {
	Source string
	Query  string
	Output string
}

type alternativeResult struct {
	selector.Alternative
	Matches int `json:"matches"`
}

// Alternatives lists candidate selectors for the first element matching the
// query, each checked against the document.
func (c SelectorCmd) Alternatives(ctx context.Context, in AlternativesInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	doc, err := c.load(ctx, in.Source)
	if err != nil {
		return err
	}
	n, err := doc.First(in.Query)
	if err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("no element matches %s", in.Query)
	}

	results := lo.Map(selector.Alternatives(n), func(a selector.Alternative, _ int) alternativeResult {
		return alternativeResult{Alternative: a, Matches: selector.ValidateUniqueness(doc.Root, a.Selector).Count}
	})

	if in.Output == "json" {
		return util.PrintJSON(c.out, results)
	}

	if len(results) == 0 {
		pterm.Info.Printf("No alternatives for %s; derived selector is %s\n", in.Query, selector.Derive(n))
		return nil
	}

	rows := pterm.TableData{{"Priority", "Type", "Selector", "Matches", "Rationale"}}
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.Priority),
			string(r.Type),
			r.Selector,
			strconv.Itoa(r.Matches),
			r.Rationale,
		})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// --- Cobra wiring ---

var selectorCmd = &cobra.Command{
	Use:     "selector",
	Aliases: []string{"sel"},
	Short:   "Derive, convert and validate CSS selectors",
}

var selectorDeriveCmd = &cobra.Command{
	Use:   "derive <source> <query>",
	Short: "Derive stable selectors for matching elements",
	Long: `Derive a selector for every element matching <query> in <source>.

<source> is a file path, "-" for stdin, or an http(s) URL.`,
	Args: cobra.ExactArgs(2),
	RunE: runSelectorDerive,
}

var selectorXPathCmd = &cobra.Command{
	Use:   "xpath <selector>",
	Short: "Convert a CSS selector to XPath",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelectorConvert,
}

var selectorJSPathCmd = &cobra.Command{
	Use:   "jspath <selector>",
	Short: "Convert a CSS selector to a document.querySelector call",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelectorConvert,
}

var selectorOptimizeCmd = &cobra.Command{
	Use:   "optimize <selector>",
	Short: "Shorten a derived selector",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelectorConvert,
}

var selectorScoreCmd = &cobra.Command{
	Use:   "score <selector>",
	Short: "Rate how well a selector survives page changes",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelectorConvert,
}

var selectorValidateCmd = &cobra.Command{
	Use:   "validate <source> <selector>",
	Short: "Check how many elements a selector matches",
	Args:  cobra.ExactArgs(2),
	RunE:  runSelectorValidate,
}

var selectorAlternativesCmd = &cobra.Command{
	Use:   "alternatives <source> <query>",
	Short: "List alternative selectors for an element",
	Args:  cobra.ExactArgs(2),
	RunE:  runSelectorAlternatives,
}

func init() {
	selectorCmd.AddCommand(selectorDeriveCmd)
	selectorCmd.AddCommand(selectorXPathCmd)
	selectorCmd.AddCommand(selectorJSPathCmd)
	selectorCmd.AddCommand(selectorOptimizeCmd)
	selectorCmd.AddCommand(selectorScoreCmd)
	selectorCmd.AddCommand(selectorValidateCmd)
	selectorCmd.AddCommand(selectorAlternativesCmd)

	selectorCmd.PersistentFlags().StringP("output", "o", "", "Output format: json for raw response")

	for _, c := range []*cobra.Command{selectorDeriveCmd, selectorValidateCmd, selectorAlternativesCmd} {
		c.Flags().Bool("render", false, "Render URLs in headless Chrome before parsing")
	}
	selectorDeriveCmd.Flags().Int("limit", 0, "Maximum number of elements to derive (0 for all)")
}

func newSelectorCmd(cmd *cobra.Command) SelectorCmd {
	return SelectorCmd{load: loaderFor(cmd), out: cmd.OutOrStdout()}
}

func runSelectorDerive(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	c := newSelectorCmd(cmd)
	return c.Derive(cmd.Context(), DeriveInput{
		Source: args[0],
		Query:  args[1],
		Limit:  limit,
		Output: output,
	})
}

func runSelectorConvert(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(args[0]) == "" {
		return errors.New("selector must not be empty")
	}

	c := SelectorCmd{out: cmd.OutOrStdout()}
	in := ConvertInput{Selector: args[0], Output: output}
	switch cmd.Name() {
	case "xpath":
		return c.XPath(cmd.Context(), in)
	case "jspath":
		return c.JSPath(cmd.Context(), in)
	case "optimize":
		return c.Optimize(cmd.Context(), in)
	default:
		return c.Score(cmd.Context(), in)
	}
}

func runSelectorValidate(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	c := newSelectorCmd(cmd)
	return c.Validate(cmd.Context(), ValidateInput{
		Source:   args[0],
		Selector: args[1],
		Output:   output,
	})
}

func runSelectorAlternatives(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	c := newSelectorCmd(cmd)
	return c.Alternatives(cmd.Context(), AlternativesInput{
		Source: args[0],
		Query:  args[1],
		Output: output,
	})
}
