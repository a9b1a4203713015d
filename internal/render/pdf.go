package render

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 portrait, in inches.
const (
	paperWidth   = 8.27
	paperHeight  = 11.69
	marginTop    = 0.5
	marginBottom = 0.75
	marginSide   = 0.45
)

const pageFooter = `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
	`<span class="title"></span> · <span class="pageNumber"></span>/<span class="totalPages"></span></div>`

// ErrNoBrowser is returned when no Chromium binary could be found.
var ErrNoBrowser = errors.New("no chromium binary available for pdf rendering")

// PDFRenderer prints an HTML document to PDF.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, htmlDoc string) ([]byte, error)
}

type ChromiumPDFRenderer struct {
	chromePath string
	timeout    time.Duration
}

// NewChromiumPDFRenderer uses chromePath, or the first browser found on the
// usual system paths when it is empty. It returns ErrNoBrowser if neither
// exists.
func NewChromiumPDFRenderer(chromePath string) (*ChromiumPDFRenderer, error) {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	if chromePath == "" {
		return nil, ErrNoBrowser
	}
	if _, err := os.Stat(chromePath); err != nil {
		return nil, err
	}
	return &ChromiumPDFRenderer{chromePath: chromePath, timeout: 30 * time.Second}, nil
}

func (r *ChromiumPDFRenderer) RenderPDF(ctx context.Context, htmlDoc string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.ExecPath(r.chromePath),
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := printParams().Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

func printParams() *page.PrintToPDFParams {
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate(`<div></div>`).
		WithFooterTemplate(pageFooter).
		WithPaperWidth(paperWidth).
		WithPaperHeight(paperHeight).
		WithMarginTop(marginTop).
		WithMarginBottom(marginBottom).
		WithMarginLeft(marginSide).
		WithMarginRight(marginSide)
}

var (
	chromeNames = []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}
	chromePaths = []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
)

// detectChromePath searches PATH first, then well-known install locations.
func detectChromePath() string {
	for _, name := range chromeNames {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	for _, p := range chromePaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
