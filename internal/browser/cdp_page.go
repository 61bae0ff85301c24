// internal/browser/cdp_page.go
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// cdpPage implements Page on top of a chromedp tab context.
type cdpPage struct {
	ctx        context.Context // tab context created by chromedp.NewContext
	timeout    time.Duration
	navTimeout time.Duration
	logger     *zap.Logger
}

var _ Page = (*cdpPage)(nil)

// run executes actions against the tab, bounded by timeout and by the caller's ctx.
func (p *cdpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runCtx, cancelRun := CombineContext(p.ctx, opCtx)
	defer cancelRun()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		p.logger.Debug("Page operation timed out.", zap.Duration("timeout", timeout), zap.Error(err))
		return fmt.Errorf("page operation timed out after %v: %w", timeout, opCtx.Err())
	}
	return err
}

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (p *cdpPage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, p.timeout, chromedp.Location(&loc))
	return loc, err
}

func (p *cdpPage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, p.timeout, chromedp.Title(&title))
	return title, err
}

func (p *cdpPage) Evaluate(ctx context.Context, script string, res interface{}) error {
	var raw []byte
	err := p.run(ctx, p.timeout, chromedp.Evaluate(script, &raw, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
	if err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	if res == nil || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, res); err != nil {
		return fmt.Errorf("decode script result: %w", err)
	}
	return nil
}

const outerHTMLScript = `(function(sel){
  const el = document.querySelector(sel);
  return el ? el.outerHTML : null;
})(%s)`

func (p *cdpPage) OuterHTML(ctx context.Context, sel string) (string, error) {
	var html *string
	if err := p.Evaluate(ctx, fmt.Sprintf(outerHTMLScript, jsonEncode(sel)), &html); err != nil {
		return "", err
	}
	if html == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return *html, nil
}

// findScript resolves a Locator. CSS candidates are tried in order; then
// visible elements in scope are compared by normalized text or aria-label,
// exact matches before substring matches. The hit is tagged with a
// data attribute so later calls can address it by selector.
const findScript = `(function(loc){
  const attr = 'data-igpilot-ref';
  const mark = (el) => {
    if (!el.hasAttribute(attr)) {
      el.setAttribute(attr, Date.now().toString(36) + Math.random().toString(36).slice(2, 8));
    }
    return '[' + attr + '="' + el.getAttribute(attr) + '"]';
  };
  for (const sel of (loc.css || [])) {
    let el = null;
    try { el = document.querySelector(sel); } catch (e) { continue; }
    if (el) return mark(el);
  }
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim().toLowerCase();
  const wanted = (loc.text || []).map(norm).filter(Boolean);
  if (!wanted.length) return null;
  const visible = (el) => {
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };
  const candidates = Array.from(document.querySelectorAll(loc.scope || %s)).filter(visible);
  const label = (el) => [norm(el.innerText || el.textContent), norm(el.getAttribute('aria-label'))];
  for (const el of candidates) {
    if (label(el).some((t) => wanted.includes(t))) return mark(el);
  }
  if (loc.exact) return null;
  for (const el of candidates) {
    if (label(el).some((t) => t && wanted.some((w) => t.includes(w)))) return mark(el);
  }
  return null;
})(%s)`

func (p *cdpPage) Find(ctx context.Context, loc Locator) (string, bool, error) {
	var sel *string
	script := fmt.Sprintf(findScript, jsonEncode(DefaultTextScope), jsonEncode(loc))
	if err := p.Evaluate(ctx, script, &sel); err != nil {
		return "", false, err
	}
	if sel == nil {
		return "", false, nil
	}
	return *sel, true, nil
}

func (p *cdpPage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s not visible within %v", ErrNotFound, sel, timeout)
	}
	return err
}

func (p *cdpPage) Click(ctx context.Context, sel string) error {
	return p.run(ctx, p.timeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *cdpPage) Type(ctx context.Context, sel, text string) error {
	return p.run(ctx, p.timeout, chromedp.SendKeys(sel, text, chromedp.ByQuery))
}

func (p *cdpPage) Press(ctx context.Context, key string, mods input.Modifier) error {
	return p.run(ctx, p.timeout, chromedp.KeyEvent(key, chromedp.KeyModifiers(mods)))
}

func (p *cdpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 yields PNG.
	if err := p.run(ctx, p.navTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// jsonEncode renders v as a JavaScript literal for script injection.
func jsonEncode(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
