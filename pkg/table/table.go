// Package table renders pterm tables for command output.
package table

import (
	"github.com/pterm/pterm"
)

// PrintTableNoPad prints rows without the boxed padding pterm uses by
// default. The first row is styled as a header when hasHeader is set.
func PrintTableNoPad(rows pterm.TableData, hasHeader bool) {
	if len(rows) == 0 {
		return
	}
	t := pterm.DefaultTable.WithData(rows).WithLeftAlignment()
	if hasHeader {
		t = t.WithHasHeader()
	}
	_ = t.Render()
}

// PrintKeyValue prints a two-column Property/Value table.
func PrintKeyValue(pairs [][2]string) {
	rows := pterm.TableData{{"Property", "Value"}}
	for _, p := range pairs {
		rows = append(rows, []string{p[0], p[1]})
	}
	PrintTableNoPad(rows, true)
}
