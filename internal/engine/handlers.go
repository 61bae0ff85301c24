// internal/engine/handlers.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/collector"
	"github.com/xkilldash9x/igpilot/internal/observability"
	"github.com/xkilldash9x/igpilot/internal/site"
)

func (e *Engine) loginCheck(ctx context.Context, logger *zap.Logger, page browser.Page, _ Request, res *Result) error {
	if err := page.Navigate(ctx, e.urls.Home()); err != nil {
		return err
	}
	var status int
	if err := page.Evaluate(ctx, site.LoginProbeScript, &status); err != nil {
		return fmt.Errorf("login check: %w", err)
	}
	res.LoginStatus = &LoginStatus{IsLoggedIn: status == 200, APIStatus: status}
	res.OK = true
	logger.Debug("Login check answered.", zap.Int("status", status))
	return nil
}

func (e *Engine) openSettings(ctx context.Context, logger *zap.Logger, page browser.Page, _ Request, res *Result) error {
	if err := page.Navigate(ctx, e.urls.Settings()); err != nil {
		return err
	}
	err := page.WaitVisible(ctx, site.SettingsFormSelector, e.cfg.SettingsWait)
	switch {
	case err == nil:
		res.OK = true
	case errors.Is(err, browser.ErrNotFound):
		logger.Debug("Settings form did not appear.", zap.Duration("wait", e.cfg.SettingsWait))
	default:
		return fmt.Errorf("wait for settings form: %w", err)
	}
	return nil
}

func (e *Engine) followersLinks(ctx context.Context, logger *zap.Logger, page browser.Page, req Request, res *Result) error {
	username := strings.TrimPrefix(strings.TrimSpace(req.Username), "@")
	if err := page.Navigate(ctx, e.urls.Profile(username)); err != nil {
		return err
	}
	e.openFollowers(ctx, logger, page, username)

	// The dialog is optional: a direct followers URL may render a full page.
	if err := page.WaitVisible(ctx, site.DialogSelector, e.cfg.DialogWait); err != nil {
		logger.Debug("Followers dialog did not appear.", zap.Error(err))
	}

	extract := func(ctx context.Context) ([]site.Item, error) {
		html, err := containerHTML(ctx, page)
		if err != nil {
			return nil, err
		}
		return site.ParseFollowers(html)
	}
	out := e.collect(ctx, logger, page, req, extract)

	coll := collection(out)
	if target := strings.TrimPrefix(strings.TrimSpace(req.TargetUser), "@"); target != "" {
		found := false
		for _, it := range out.Items {
			if strings.EqualFold(it.Username, target) {
				found = true
				break
			}
		}
		coll.FoundTarget = &found
	}
	res.Collection = coll
	res.OK = out.Count > 0
	observability.CollectedItems.WithLabelValues(string(ActionFollowersLinks)).Add(float64(out.Count))
	return nil
}

// openFollowers clicks the profile's followers link, falling back to the
// followers URL. Neither path is required to succeed.
func (e *Engine) openFollowers(ctx context.Context, logger *zap.Logger, page browser.Page, username string) {
	sel, ok, err := page.Find(ctx, browser.Locator{CSS: site.FollowersLinkSelectors(username)})
	if err == nil && ok {
		if err = page.Click(ctx, sel); err == nil {
			return
		}
	}
	logger.Debug("Followers link not usable, navigating directly.", zap.Bool("found", ok), zap.Error(err))
	if err := page.Navigate(ctx, e.urls.Followers(username)); err != nil {
		logger.Debug("Direct followers navigation failed.", zap.Error(err))
	}
}

func (e *Engine) notificationsSubscribers(ctx context.Context, logger *zap.Logger, page browser.Page, req Request, res *Result) error {
	if err := page.Navigate(ctx, e.urls.Notifications()); err != nil {
		return err
	}
	loc, err := page.Location(ctx)
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if site.IsLoginRedirect(loc) {
		res.NeedLogin = true
		res.URL = loc
		logger.Info("Notifications redirected to login.")
		return nil
	}

	maxAge := e.cfg.NotificationMaxAge
	extract := func(ctx context.Context) ([]site.Item, error) {
		html, err := containerHTML(ctx, page)
		if err != nil {
			return nil, err
		}
		return site.ParseNotifications(html, e.now(), maxAge)
	}
	out := e.collect(ctx, logger, page, req, extract)

	res.Collection = collection(out)
	res.OK = true
	observability.CollectedItems.WithLabelValues(string(ActionNotificationsSubscribers)).Add(float64(out.Count))
	return nil
}

func (e *Engine) sendMessage(ctx context.Context, _ *zap.Logger, page browser.Page, req Request, res *Result) error {
	out, err := e.composer.Send(ctx, page, req.Target(), req.Message)
	res.Delivery = &Delivery{Sent: out.Sent, Confirmed: out.Confirmed, Target: out.Target}
	res.NeedLogin = out.NeedLogin
	res.OK = out.Confirmed
	return err
}

// collect runs the collector loop with the request's ceilings.
func (e *Engine) collect(ctx context.Context, logger *zap.Logger, page browser.Page, req Request, extract collector.Extractor) collector.Outcome {
	size, timeout := e.limits.Resolve(req.Max, time.Duration(req.TimeoutMs)*time.Millisecond)
	scroll := func(ctx context.Context) (bool, error) {
		var modal bool
		err := page.Evaluate(ctx, site.ScrollScript, &modal)
		return modal, err
	}
	return collector.Run(ctx, logger, extract, scroll, collector.Options{
		Max:      size,
		Timeout:  timeout,
		MinPause: e.minPause,
		MaxPause: e.maxPause,
	})
}

// containerHTML returns the open dialog's markup, or the whole body when
// no dialog is shown.
func containerHTML(ctx context.Context, page browser.Page) (string, error) {
	html, err := page.OuterHTML(ctx, site.DialogSelector)
	if errors.Is(err, browser.ErrNotFound) {
		return page.OuterHTML(ctx, "body")
	}
	return html, err
}

func collection(out collector.Outcome) *Collection {
	return &Collection{
		Links:      out.Items,
		Count:      out.Count,
		HadModal:   out.HadModal,
		ReachedEnd: out.ReachedEnd,
		StopReason: string(out.Reason),
	}
}
