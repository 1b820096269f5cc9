package fetch

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
)

// Browser manages a single headless Chrome session shared by all audits,
// with a health-tracked tab pool. It is safe for concurrent use.
type Browser struct {
	browser    *rod.Browser
	pool       *tabPool
	cfg        config.BrowserConfig
	activeTabs atomic.Int32
	pid        int
}

// NewBrowser launches the headless browser and initialises the reusable
// tab pool. The browser stays up for the life of the process; individual
// audits borrow tabs from the pool.
func NewBrowser(cfg config.BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// ── Mask automation, quiet background work ──────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewAuditError(
			models.ErrCodeRenderFailed,
			"browser launch failed",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewAuditError(
			models.ErrCodeRenderFailed,
			"browser connection failed",
			err,
		)
	}

	b := &Browser{
		browser: browser,
		cfg:     cfg,
		pid:     l.PID(),
	}
	b.pool = newTabPool(cfg.MaxPages, func() (*rod.Page, error) {
		return browser.Page(proto.TargetCreateTarget{})
	})
	slog.Info("tab pool created", "maxPages", cfg.MaxPages)

	return b, nil
}

// Stats returns a snapshot of browser state for the health endpoint.
func (b *Browser) Stats() models.BrowserStats {
	if b == nil {
		return models.BrowserStats{}
	}
	return models.BrowserStats{
		Running:     true,
		MaxPages:    b.cfg.MaxPages,
		ActivePages: int(b.activeTabs.Load()),
		BrowserPID:  b.pid,
	}
}

// Close drains the tab pool and kills the browser process. Call on
// graceful shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	slog.Info("browser shutting down: draining tab pool")
	b.pool.close()
	slog.Info("browser shutting down: closing browser")
	b.browser.MustClose()
	slog.Info("browser shutdown complete")
}

// RenderTimeout exposes the configured per-render deadline.
func (b *Browser) RenderTimeout() time.Duration {
	return b.cfg.RenderTimeout
}
