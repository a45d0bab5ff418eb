package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Renderer turns a receipt document into something the platform can print.
type Renderer interface {
	Render(ctx context.Context, doc Document, format Format) ([]byte, error)
}

// HTMLRenderer only produces HTML. Used when no browser is installed.
type HTMLRenderer struct{}

func (HTMLRenderer) Render(_ context.Context, doc Document, format Format) ([]byte, error) {
	if format != FormatHTML {
		return nil, fmt.Errorf("format %s needs a browser: %w", format, ErrRendererUnavailable)
	}
	return RenderHTML(doc)
}

// ChromeRenderer prints the receipt page with headless Chrome.
type ChromeRenderer struct {
	execPath string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewChromeRenderer(execPath string, timeout time.Duration, logger *slog.Logger) *ChromeRenderer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeRenderer{execPath: execPath, timeout: timeout, logger: logger}
}

// Paper width of an 80mm roll, in inches.
const rollWidthInches = 80 / 25.4

func (r *ChromeRenderer) Render(ctx context.Context, doc Document, format Format) ([]byte, error) {
	html, err := RenderHTML(doc)
	if err != nil {
		return nil, err
	}
	if format == FormatHTML {
		return html, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	cdpCtx, timeoutCancel := context.WithTimeout(cdpCtx, r.timeout)
	defer timeoutCancel()

	var out []byte
	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(rollWidthInches).
			WithPreferCSSPageSize(true).
			Do(ctx)
		if err != nil {
			return err
		}
		out = buf
		return nil
	})
	if format == FormatPNG {
		capture = chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true). // capture full height
				Do(ctx)
			if err != nil {
				return err
			}
			out = buf
			return nil
		})
	}

	err = chromedp.Run(cdpCtx,
		chromedp.Navigate("data:text/html,"+urlEncode(string(html))),
		chromedp.WaitReady("body"),
		capture,
	)
	if err != nil {
		return nil, fmt.Errorf("failed rendering %s: %w", format, err)
	}
	r.logger.Debug("fallback document rendered", "order_id", doc.OrderID, "format", format, "bytes", len(out))
	return out, nil
}

// urlEncode encodes HTML for a data URL.
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
