package page

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/pterm/pterm"
)

// Renderer returns the serialised DOM of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, url string) (string, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// Chrome renders pages in a headless Chrome driven by rod. A browser is
// launched per call.
type Chrome struct {
	// Bin is the Chrome executable. Empty lets rod find or download one.
	Bin       string
	UserAgent string
	Timeout   time.Duration
	// Stealth opens the tab with the stealth.js evasions applied so pages
	// that sniff for headless automation render normally.
	Stealth bool
}

// Render navigates to url, waits for the load event and returns the outer
// HTML of the document element.
func (c Chrome) Render(ctx context.Context, url string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	l := launcher.New().Context(ctx).Headless(true).
		Set("disable-blink-features", "AutomationControlled")
	if c.Bin != "" {
		l = l.Bin(c.Bin)
	}
	wsURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("browser: launch: %w", err)
	}
	defer l.Cleanup()
	defer l.Kill()

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return "", fmt.Errorf("browser: connect: %w", err)
	}
	defer b.Close()

	var p *rod.Page
	if c.Stealth {
		p, err = stealth.Page(b)
	} else {
		p, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	if c.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.UserAgent}); err != nil {
			pterm.Debug.Printfln("browser: set user agent: %v", err)
		}
	}
	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		pterm.Warning.Printfln("Page %s did not finish loading: %v", url, err)
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// LookChrome reports the Chrome executable Chrome.Render would launch. An
// explicit bin must exist; otherwise the usual install locations are
// searched. rod can still download a browser when nothing is found.
func LookChrome(bin string) (string, bool) {
	if bin != "" {
		info, err := os.Stat(bin)
		return bin, err == nil && !info.IsDir()
	}
	return launcher.LookPath()
}
