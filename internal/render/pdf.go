package render

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 in inches with a 2cm margin.
const (
	a4Width    = 8.27
	a4Height   = 11.69
	pageMargin = 0.79
)

var chromiumBinaries = []string{"chromium-browser", "chromium", "google-chrome", "google-chrome-stable"}

// chromiumBinary returns the first Chrome-compatible executable on PATH.
func chromiumBinary(lookPath func(string) (string, error)) string {
	for _, name := range chromiumBinaries {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// htmlToPDF loads the page into a blank tab and prints it with headless Chrome.
func htmlToPDF(ctx context.Context, html string) ([]byte, error) {
	bin := chromiumBinary(exec.LookPath)
	if bin == "" {
		return nil, fmt.Errorf("%w: chromium not installed", ErrPDFDependencyMissing)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(bin),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var out []byte
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPaperWidth(a4Width).
				WithPaperHeight(a4Height).
				WithMarginTop(pageMargin).
				WithMarginBottom(pageMargin).
				WithMarginLeft(pageMargin).
				WithMarginRight(pageMargin).
				WithPrintBackground(true).
				Do(ctx)
			out = data
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return out, nil
}
