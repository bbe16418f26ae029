package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const cssPixelsPerInch = 96.0

// waitForImages resolves once every <img> has loaded or failed.
const waitForImages = `() => Promise.all(Array.from(document.images).map(img =>
	img.complete ? null : new Promise(done => { img.onload = done; img.onerror = done; })))`

const measurePass = `() => ({ width: this.offsetWidth, height: this.offsetHeight })`

// RodExporter prints passes with headless Chrome. The browser is started on
// first use and shared across exports; each export uses its own page.
type RodExporter struct {
	bin    string
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodExporter uses the Chrome binary at bin, or lets rod find one when bin is empty.
func NewRodExporter(bin string, logger *slog.Logger) *RodExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RodExporter{bin: bin, logger: logger}
}

// Export loads html, sizes the paper to the #pass element and prints it.
func (e *RodExporter) Export(ctx context.Context, html []byte) ([]byte, error) {
	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			e.logger.DebugContext(ctx, "close render page", "error", cerr)
		}
	}()
	p := page.Context(ctx)

	if err := p.SetDocumentContent(string(html)); err != nil {
		return nil, fmt.Errorf("load pass document: %w", err)
	}
	if _, err := p.Eval(waitForImages); err != nil {
		return nil, fmt.Errorf("wait for images: %w", err)
	}

	el, err := p.Element("#pass")
	if err != nil {
		return nil, fmt.Errorf("find pass element: %w", err)
	}
	size, err := el.Eval(measurePass)
	if err != nil {
		return nil, fmt.Errorf("measure pass: %w", err)
	}
	width := size.Value.Get("width").Num() / cssPixelsPerInch
	height := size.Value.Get("height").Num() / cssPixelsPerInch
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pass has no size: %vx%v in", width, height)
	}

	zero := 0.0
	stream, err := p.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      &width,
		PaperHeight:     &height,
		MarginTop:       &zero,
		MarginBottom:    &zero,
		MarginLeft:      &zero,
		MarginRight:     &zero,
		PageRanges:      "1",
	})
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return io.ReadAll(stream)
}

// Close shuts the browser down if it was started.
func (e *RodExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}

func (e *RodExporter) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New().Headless(true)
	if e.bin != "" {
		l = l.Bin(e.bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	e.browser = browser
	e.logger.Info("headless chrome started", "bin", e.bin)
	return browser, nil
}
