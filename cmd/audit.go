package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/csae-toolkit/csae/pkg/inspect"
	"github.com/csae-toolkit/csae/pkg/table"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// AuditCmd runs document inspections.
type AuditCmd struct {
	load DocumentLoader
	out  io.Writer
}

// AuditInput holds input for an audit.
type AuditInput struct {
	Source string
	// MinImpact drops issues milder than this level. Empty keeps all.
	MinImpact string
	Output    string
}

var impactRank = map[string]int{
	inspect.ImpactMinor:    0,
	inspect.ImpactModerate: 1,
	inspect.ImpactSerious:  2,
	inspect.ImpactCritical: 3,
}

// A11y reports accessibility issues.
func (c AuditCmd) A11y(ctx context.Context, in AuditInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	minRank := 0
	if in.MinImpact != "" {
		r, ok := impactRank[in.MinImpact]
		if !ok {
			return fmt.Errorf("invalid --min-impact %q: use minor, moderate, serious or critical", in.MinImpact)
		}
		minRank = r
	}

	doc, err := c.load(ctx, in.Source)
	if err != nil {
		return err
	}

	issues := lo.Filter(inspect.AuditA11y(doc.Root), func(is inspect.Issue, _ int) bool {
		return impactRank[is.Impact] >= minRank
	})

	if in.Output == "json" {
		return util.PrintJSON(c.out, issues)
	}

	if len(issues) == 0 {
		pterm.Success.Println("No accessibility issues found")
		return nil
	}

	rows := pterm.TableData{{"Impact", "Rule", "Selector", "Message"}}
	for _, is := range issues {
		rows = append(rows, []string{is.Impact, is.Rule, util.OrDash(is.Selector), is.Message})
	}
	table.PrintTableNoPad(rows, true)

	counts := lo.CountValuesBy(issues, func(is inspect.Issue) string { return is.Impact })
	levels := lo.Keys(counts)
	sort.Slice(levels, func(i, j int) bool { return impactRank[levels[i]] > impactRank[levels[j]] })
	summary := lo.Map(levels, func(l string, _ int) string { return strconv.Itoa(counts[l]) + " " + l })
	pterm.Warning.Printf("%d issue(s): %s\n", len(issues), util.JoinOrDash(summary...))
	return nil
}

// Stack reports the detected technologies.
func (c AuditCmd) Stack(ctx context.Context, in AuditInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	doc, err := c.load(ctx, in.Source)
	if err != nil {
		return err
	}
	techs := inspect.DetectStack(doc.Root)

	if in.Output == "json" {
		return util.PrintJSON(c.out, techs)
	}

	if len(techs) == 0 {
		pterm.Info.Println("No known technologies detected")
		return nil
	}

	rows := pterm.TableData{{"Name", "Category", "Evidence"}}
	for _, t := range techs {
		rows = append(rows, []string{t.Name, t.Category, util.Truncate(t.Evidence, 60)})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

// --- Cobra wiring ---

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect a document",
}

var auditA11yCmd = &cobra.Command{
	Use:   "a11y <source>",
	Short: "Report common accessibility problems",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditA11y,
}

var auditStackCmd = &cobra.Command{
	Use:   "stack <source>",
	Short: "Detect frameworks, CMSs and libraries",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditStack,
}

func init() {
	auditCmd.AddCommand(auditA11yCmd)
	auditCmd.AddCommand(auditStackCmd)

	auditCmd.PersistentFlags().StringP("output", "o", "", "Output format: json for raw response")
	auditCmd.PersistentFlags().Bool("render", false, "Render URLs in headless Chrome before parsing")
	auditA11yCmd.Flags().String("min-impact", "", "Only report issues at or above this impact (minor, moderate, serious, critical)")
}

func runAuditA11y(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	minImpact, _ := cmd.Flags().GetString("min-impact")

	c := AuditCmd{load: loaderFor(cmd), out: cmd.OutOrStdout()}
	return c.A11y(cmd.Context(), AuditInput{Source: args[0], MinImpact: minImpact, Output: output})
}

func runAuditStack(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	c := AuditCmd{load: loaderFor(cmd), out: cmd.OutOrStdout()}
	return c.Stack(cmd.Context(), AuditInput{Source: args[0], Output: output})
}
