package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/csae-toolkit/csae/internal/config"
	"github.com/csae-toolkit/csae/internal/page"
	"github.com/csae-toolkit/csae/internal/store"
	"github.com/csae-toolkit/csae/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type statusComponent struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

type statusGroup struct {
	Name       string            `json:"name"`
	Status     string            `json:"status"`
	Components []statusComponent `json:"components"`
}

type statusResponse struct {
	Version string        `json:"version"`
	Commit  string        `json:"commit,omitempty"`
	Status  string        `json:"status"`
	Groups  []statusGroup `json:"groups"`
}

const (
	statusOK      = "ok"
	statusInfo    = "info"
	statusWarning = "warning"
	statusError   = "error"
)

var statusRank = map[string]int{statusOK: 0, statusInfo: 0, statusWarning: 1, statusError: 2}

// StatusCmd reports on the local csae environment.
type StatusCmd struct {
	cfg        *config.Config
	openStore  func(ctx context.Context, path string) (*store.Store, error)
	lookChrome func(bin string) (string, bool)
	out        io.Writer
}

// Status collects configuration, store and browser health.
func (c StatusCmd) Status(ctx context.Context, output string) error {
	if output != "" && output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	resp := statusResponse{Version: metadata.Version, Commit: metadata.Commit}
	resp.Groups = []statusGroup{
		c.configGroup(),
		c.storeGroup(ctx),
		c.browserGroup(),
	}
	resp.Status = statusOK
	for i := range resp.Groups {
		g := &resp.Groups[i]
		g.Status = worst(g.Components)
		if statusRank[g.Status] > statusRank[resp.Status] {
			resp.Status = g.Status
		}
	}

	if output == "json" {
		return util.PrintJSON(c.out, resp)
	}
	printStatus(resp)
	return nil
}

func (c StatusCmd) configGroup() statusGroup {
	path := c.cfg.Path()
	file := statusComponent{Name: "Config file", Status: statusOK, Detail: path}
	if _, err := os.Stat(path); err != nil {
		file.Status = statusInfo
		file.Detail = path + " (not present, using defaults)"
	}
	return statusGroup{Name: "Configuration", Components: []statusComponent{
		{Name: "Home", Status: statusOK, Detail: c.cfg.Home},
		file,
		{Name: "Default output", Status: statusOK, Detail: c.cfg.Output},
		{Name: "History max steps", Status: statusOK, Detail: strconv.Itoa(c.cfg.History.MaxSteps)},
		{Name: "Fetch", Status: statusOK, Detail: fmt.Sprintf("%s timeout, %s cap", c.cfg.Fetch.Timeout, util.FormatBytes(c.cfg.Fetch.MaxBytes))},
	}}
}

func (c StatusCmd) storeGroup(ctx context.Context) statusGroup {
	g := statusGroup{Name: "Store"}
	info, err := os.Stat(c.cfg.Store)
	if err != nil {
		g.Components = append(g.Components, statusComponent{
			Name:   "Database",
			Status: statusInfo,
			Detail: c.cfg.Store + " (created on first use)",
		})
		return g
	}

	s, err := c.openStore(ctx, c.cfg.Store)
	if err != nil {
		g.Components = append(g.Components, statusComponent{Name: "Database", Status: statusError, Detail: err.Error()})
		return g
	}
	defer s.Close()

	version, err := s.Version(ctx)
	if err != nil {
		version = "unknown"
	}
	g.Components = append(g.Components,
		statusComponent{Name: "Database", Status: statusOK, Detail: fmt.Sprintf("%s (%s)", c.cfg.Store, util.FormatBytes(info.Size()))},
		statusComponent{Name: "Schema", Status: statusOK, Detail: version},
	)

	counts := []struct {
		name  string
		count func() (int, error)
	}{
		{"Keys", func() (int, error) { e, err := s.Keys(ctx, ""); return len(e), err }},
		{"Snippets", func() (int, error) { sn, err := s.Snippets(ctx); return len(sn), err }},
		{"Favorites", func() (int, error) { f, err := s.Favorites(ctx); return len(f), err }},
	}
	for _, ct := range counts {
		n, err := ct.count()
		comp := statusComponent{Name: ct.name, Status: statusOK, Detail: strconv.Itoa(n)}
		if err != nil {
			comp.Status = statusWarning
			comp.Detail = err.Error()
		}
		g.Components = append(g.Components, comp)
	}
	return g
}

func (c StatusCmd) browserGroup() statusGroup {
	chrome := statusComponent{Name: "Chrome", Status: statusOK}
	if bin, ok := c.lookChrome(c.cfg.Browser.Bin); ok {
		chrome.Detail = bin
	} else if c.cfg.Browser.Bin != "" {
		chrome.Status = statusError
		chrome.Detail = c.cfg.Browser.Bin + " not found"
	} else {
		chrome.Status = statusWarning
		chrome.Detail = "not found; --render will download Chromium on first use"
	}
	return statusGroup{Name: "Browser", Components: []statusComponent{
		chrome,
		{Name: "Render by default", Status: statusOK, Detail: strconv.FormatBool(c.cfg.Browser.Render)},
	}}
}

func worst(comps []statusComponent) string {
	s := statusOK
	for _, c := range comps {
		if statusRank[c.Status] > statusRank[s] {
			s = c.Status
		}
	}
	return s
}

var statusDisplay = map[string]struct {
	label string
	rgb   pterm.RGB
}{
	statusOK:      {label: "OK", rgb: pterm.NewRGB(31, 163, 130)},
	statusInfo:    {label: "Info", rgb: pterm.NewRGB(36, 99, 235)},
	statusWarning: {label: "Warning", rgb: pterm.NewRGB(245, 158, 11)},
	statusError:   {label: "Error", rgb: pterm.NewRGB(239, 68, 68)},
}

func getStatusDisplay(status string) (string, pterm.RGB) {
	if d, ok := statusDisplay[status]; ok {
		return d.label, d.rgb
	}
	return "Unknown", pterm.NewRGB(128, 128, 128)
}

func coloredDot(rgb pterm.RGB) string {
	return rgb.Sprint("●")
}

func printStatus(resp statusResponse) {
	label, rgb := getStatusDisplay(resp.Status)
	pterm.Println()
	pterm.Printf("  csae %s: %s\n", resp.Version, rgb.Sprint(label))

	for _, group := range resp.Groups {
		pterm.Println()
		pterm.Println("  " + pterm.Bold.Sprint(group.Name))
		for _, comp := range group.Components {
			_, compColor := getStatusDisplay(comp.Status)
			pterm.Printf("    %s %-20s %s\n", coloredDot(compColor), comp.Name, comp.Detail)
		}
	}
	pterm.Println()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, store and browser status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format (json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	output, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	c := StatusCmd{
		cfg:        getConfig(cmd),
		openStore:  store.Open,
		lookChrome: page.LookChrome,
		out:        cmd.OutOrStdout(),
	}
	return c.Status(cmd.Context(), output)
}
