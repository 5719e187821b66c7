package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/csae-toolkit/csae/internal/history"
	"github.com/csae-toolkit/csae/internal/page"
	"github.com/csae-toolkit/csae/pkg/domedit"
	"github.com/csae-toolkit/csae/pkg/table"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pkg/browser"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
)

// Edit verbs understood by ParseEditOp.
const (
	VerbDelete    = "delete"
	VerbHide      = "hide"
	VerbDuplicate = "duplicate"
	VerbStyle     = "style"
	VerbText      = "text"
	VerbAttr      = "attr"
	VerbUndo      = "undo"
	VerbRedo      = "redo"
)

const opSeparator = "::"

// EditOp is one line of an edit script: verb::selector[::argument].
type EditOp struct {
	Verb     string
	Selector string
	Arg      string
	Line     int
}

func (o EditOp) String() string {
	if o.Selector == "" {
		return o.Verb
	}
	s := o.Verb + opSeparator + o.Selector
	if o.Arg != "" {
		s += opSeparator + o.Arg
	}
	return s
}

// ParseEditOp parses a single operation.
func ParseEditOp(s string) (EditOp, error) {
	parts := strings.SplitN(strings.TrimSpace(s), opSeparator, 3)
	op := EditOp{Verb: strings.ToLower(strings.TrimSpace(parts[0]))}
	if len(parts) > 1 {
		op.Selector = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		op.Arg = parts[2]
	}

	switch op.Verb {
	case VerbUndo, VerbRedo:
		if op.Selector != "" {
			return op, fmt.Errorf("%s takes no selector", op.Verb)
		}
		return op, nil
	case VerbDelete, VerbHide, VerbDuplicate:
		if op.Arg != "" {
			return op, fmt.Errorf("%s takes no argument", op.Verb)
		}
	case VerbStyle, VerbText, VerbAttr:
		if len(parts) < 3 {
			return op, fmt.Errorf("%s needs an argument: %s::<selector>::<value>", op.Verb, op.Verb)
		}
	case "":
		return op, errors.New("empty operation")
	default:
		return op, fmt.Errorf("unknown edit verb %q", op.Verb)
	}
	if op.Selector == "" {
		return op, fmt.Errorf("%s needs a selector", op.Verb)
	}
	return op, nil
}

// ParseEditScript reads one operation per line. Blank lines and lines
// starting with # are ignored.
func ParseEditScript(r io.Reader) ([]EditOp, error) {
	var ops []EditOp
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		op, err := ParseEditOp(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		op.Line = line
		ops = append(ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ops, nil
}

// parseStyleArg turns "color: red; display: none" into a property map.
func parseStyleArg(arg string) (map[string]string, error) {
	props := map[string]string{}
	for _, decl := range strings.Split(arg, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		name, value, ok := strings.Cut(decl, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid declaration %q: use property:value", decl)
		}
		props[name] = strings.TrimSpace(value)
	}
	if len(props) == 0 {
		return nil, errors.New("no style declarations")
	}
	return props, nil
}

// parseAttrArg accepts "name=value" to set and "-name" to remove.
func parseAttrArg(arg string) (name, value string, remove bool, err error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "-") {
		name = strings.TrimSpace(arg[1:])
		remove = true
	} else {
		var ok bool
		name, value, ok = strings.Cut(arg, "=")
		if !ok {
			return "", "", false, fmt.Errorf("invalid attribute %q: use name=value or -name", arg)
		}
		name = strings.TrimSpace(name)
	}
	if name == "" || strings.ContainsAny(name, " \t\n\"'<>/=") {
		return "", "", false, fmt.Errorf("invalid attribute name %q", name)
	}
	return strings.ToLower(name), value, remove, nil
}

// actionFor builds the reversible edit an operation performs on n.
func actionFor(op EditOp, n *html.Node) (history.Action, error) {
	switch op.Verb {
	case VerbDelete:
		return domedit.Delete(n), nil
	case VerbHide:
		return domedit.Hide(n), nil
	case VerbDuplicate:
		return domedit.Duplicate(n), nil
	case VerbText:
		return domedit.TextEdit(n, op.Arg), nil
	case VerbStyle:
		props, err := parseStyleArg(op.Arg)
		if err != nil {
			return history.Action{}, err
		}
		return domedit.StyleChange(n, props), nil
	case VerbAttr:
		name, value, remove, err := parseAttrArg(op.Arg)
		if err != nil {
			return history.Action{}, err
		}
		return domedit.AttributeChange(n, name, value, remove), nil
	}
	return history.Action{}, fmt.Errorf("unknown edit verb %q", op.Verb)
}

// EditCmd applies scripted edits to a document.
type EditCmd struct {
	load    DocumentLoader
	out     io.Writer
	openURL func(url string) error
	logger  *pterm.Logger

	// defaultMaxSteps is the configured capacity, with any stored
	// history_max_steps setting already applied.
	defaultMaxSteps int
}

// EditInput holds input for an edit run.
type EditInput struct {
	Source   string
	Ops      []EditOp
	OutFile  string
	InPlace  bool
	Backup   bool
	Open     bool
	MaxSteps int
	Output   string
}

type editResult struct {
	Source   string        `json:"source"`
	OutFile  string        `json:"out_file,omitempty"`
	Backup   string        `json:"backup,omitempty"`
	Applied  int           `json:"applied"`
	Undone   int           `json:"undone"`
	Redone   int           `json:"redone"`
	Skipped  int           `json:"skipped"`
	MaxSteps int           `json:"max_steps"`
	History  history.State `json:"history"`
	HTML     string        `json:"html,omitempty"`
}

// Run loads the source document, applies the operations in order and writes
// the result.
func (c EditCmd) Run(ctx context.Context, in EditInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	if len(in.Ops) == 0 {
		return errors.New("no edit operations given: use --op or --script")
	}
	if in.InPlace {
		if in.Source == page.Stdin || page.IsURL(in.Source) {
			return errors.New("--in-place needs a file source")
		}
		if in.OutFile != "" && in.OutFile != in.Source {
			return errors.New("--in-place and --out are mutually exclusive")
		}
		in.OutFile = in.Source
	}
	if in.Open && in.OutFile == "" {
		return errors.New("--open needs --out or --in-place")
	}

	doc, err := c.load(ctx, in.Source)
	if err != nil {
		return err
	}

	maxSteps := c.resolveMaxSteps(in.MaxSteps)
	opts := []history.Option{history.WithMaxSteps(maxSteps)}
	if c.logger != nil {
		opts = append(opts, history.WithLogger(c.logger))
	}
	m := history.New(opts...)
	unsubscribe := m.Subscribe(func(s history.State) {
		pterm.Debug.Printfln("History %d/%d (undo: %t, redo: %t)", s.CurrentIndex+1, s.HistoryLength, s.CanUndo, s.CanRedo)
	})
	defer unsubscribe()

	res := editResult{Source: in.Source, MaxSteps: m.MaxSteps()}
	for i, op := range in.Ops {
		line := op.Line
		if line == 0 {
			line = i + 1
		}
		switch op.Verb {
		case VerbUndo:
			if m.Undo() {
				res.Undone++
			} else {
				res.Skipped++
			}
			continue
		case VerbRedo:
			if m.Redo() {
				res.Redone++
			} else {
				res.Skipped++
			}
			continue
		}

		action, err := c.buildAction(doc, op)
		if err != nil {
			return fmt.Errorf("op %d (%s): %w", line, op, err)
		}
		if err := m.Execute(action); err != nil {
			return fmt.Errorf("op %d (%s): %w", line, op, err)
		}
		res.Applied++
	}
	res.History = m.State()

	if in.OutFile != "" {
		backup, err := writeEdited(doc, in.OutFile, in.Backup)
		if err != nil {
			return err
		}
		res.OutFile = in.OutFile
		res.Backup = backup
	}

	if in.Output == "json" {
		if in.OutFile == "" {
			res.HTML = doc.String()
		}
		return util.PrintJSON(c.out, res)
	}

	if in.OutFile == "" {
		if err := doc.Render(c.out); err != nil {
			return fmt.Errorf("failed to render document: %w", err)
		}
		_, err := fmt.Fprintln(c.out)
		return err
	}

	pterm.Success.Printf("Wrote %s (%d applied, %d undone, %d redone)\n", in.OutFile, res.Applied, res.Undone, res.Redone)
	if res.Backup != "" {
		pterm.Info.Printf("Backup saved to %s\n", res.Backup)
	}
	if res.Skipped > 0 {
		pterm.Warning.Printf("%d undo/redo step(s) had nothing to do\n", res.Skipped)
	}
	printHistory(res.History)

	if in.Open {
		abs, err := filepath.Abs(in.OutFile)
		if err != nil {
			return err
		}
		if err := c.openURL("file://" + filepath.ToSlash(abs)); err != nil {
			pterm.Warning.Printf("Could not open browser: %v\n", err)
		}
	}
	return nil
}

// buildAction resolves the operation's selector. An operation matching
// several elements becomes one compound action so it undoes as a unit.
func (c EditCmd) buildAction(doc *page.Document, op EditOp) (history.Action, error) {
	nodes, err := doc.All(op.Selector)
	if err != nil {
		return history.Action{}, err
	}
	if len(nodes) == 0 {
		return history.Action{}, fmt.Errorf("no element matches %s", op.Selector)
	}

	actions := make([]history.Action, 0, len(nodes))
	for _, n := range nodes {
		a, err := actionFor(op, n)
		if err != nil {
			return history.Action{}, err
		}
		actions = append(actions, a)
	}
	if len(actions) == 1 {
		return actions[0], nil
	}
	return history.Compound(fmt.Sprintf("%s on %d elements matching %s", op.Verb, len(actions), op.Selector), actions...), nil
}

// resolveMaxSteps picks the timeline capacity: explicit value, then the
// configured default.
func (c EditCmd) resolveMaxSteps(explicit int) int {
	if explicit > 0 {
		return explicit
	}
	if c.defaultMaxSteps > 0 {
		return c.defaultMaxSteps
	}
	return history.DefaultMaxSteps
}

// writeEdited writes doc to path, first copying an existing file to
// path.bak when backup is set. It returns the backup path, if any.
func writeEdited(doc *page.Document, path string, backup bool) (string, error) {
	perm := os.FileMode(0o644)
	var backupPath string
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
		if backup {
			backupPath = path + ".bak"
			if err := util.CopyFile(path, backupPath); err != nil {
				return "", fmt.Errorf("failed to back up %s: %w", path, err)
			}
		}
	}
	if err := doc.WriteFile(path, perm); err != nil {
		return "", err
	}
	return backupPath, nil
}

func printHistory(s history.State) {
	if s.HistoryLength == 0 {
		pterm.Info.Println("History is empty")
		return
	}
	rows := pterm.TableData{{"#", "Type", "Description", "State"}}
	for i, e := range s.History {
		state := "applied"
		if i > s.CurrentIndex {
			state = "undone"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), string(e.Type), util.Truncate(e.Description, 60), state})
	}
	table.PrintTableNoPad(rows, true)
}

// --- Cobra wiring ---

var editCmd = &cobra.Command{
	Use:   "edit <source>",
	Short: "Apply reversible edits to an HTML document",
	Long: `Apply a sequence of edits to <source> and print or save the result.

Each operation has the form verb::selector[::argument]:

  delete::<selector>
  hide::<selector>
  duplicate::<selector>
  style::<selector>::<prop>:<value>[; <prop>:<value>...]
  text::<selector>::<text>
  attr::<selector>::<name>=<value>   (or -<name> to remove)
  undo
  redo

An operation whose selector matches several elements edits all of them
and undoes as one step. The timeline keeps the last --max-steps edits.`,
	Example: `  csae edit page.html --op 'delete::.ad' --op 'text::h1::Hello' -O out.html
  csae edit page.html --script edits.txt --in-place --backup`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringArray("op", nil, "Edit operation (repeatable)")
	editCmd.Flags().String("script", "", "File with one edit operation per line")
	editCmd.Flags().StringP("out", "O", "", "Write the edited document to this file")
	editCmd.Flags().Bool("in-place", false, "Overwrite the source file")
	editCmd.Flags().Bool("backup", false, "Keep a .bak copy of the file being overwritten")
	editCmd.Flags().Bool("open", false, "Open the written file in the browser")
	editCmd.Flags().Int("max-steps", 0, "Undo timeline capacity (default from settings or config)")
	editCmd.Flags().Bool("render", false, "Render URLs in headless Chrome before parsing")
	editCmd.Flags().StringP("output", "o", "", "Output format: json for raw response")
}

func runEdit(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	rawOps, _ := cmd.Flags().GetStringArray("op")
	script, _ := cmd.Flags().GetString("script")
	outFile, _ := cmd.Flags().GetString("out")
	inPlace, _ := cmd.Flags().GetBool("in-place")
	backup, _ := cmd.Flags().GetBool("backup")
	open, _ := cmd.Flags().GetBool("open")
	maxSteps, _ := cmd.Flags().GetInt("max-steps")

	var ops []EditOp
	if script != "" {
		f, err := os.Open(script)
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		ops, err = ParseEditScript(f)
		f.Close()
		if err != nil {
			return err
		}
	}
	for i, raw := range rawOps {
		op, err := ParseEditOp(raw)
		if err != nil {
			return fmt.Errorf("--op %d: %w", i+1, err)
		}
		ops = append(ops, op)
	}

	c := EditCmd{
		load:            loaderFor(cmd),
		out:             cmd.OutOrStdout(),
		openURL:         browser.OpenURL,
		defaultMaxSteps: getConfig(cmd).History.MaxSteps,
	}
	if pterm.PrintDebugMessages {
		c.logger = pterm.DefaultLogger.WithLevel(pterm.LogLevelDebug)
	}

	return c.Run(cmd.Context(), EditInput{
		Source:   args[0],
		Ops:      ops,
		OutFile:  outFile,
		InPlace:  inPlace,
		Backup:   backup,
		Open:     open,
		MaxSteps: maxSteps,
		Output:   output,
	})
}
