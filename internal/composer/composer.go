// internal/composer/composer.go
package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/site"
)

// State is a step of the message sending flow.
type State int

const (
	StateNavigateTarget State = iota
	StateNeedLogin
	StateLocateThread
	StateLocateComposer
	StateClearAndType
	StateLocateSendControl
	StateSubmit
	StateConfirm
	StateTimeout
)

func (s State) String() string {
	switch s {
	case StateNavigateTarget:
		return "navigate_target"
	case StateNeedLogin:
		return "need_login"
	case StateLocateThread:
		return "locate_thread"
	case StateLocateComposer:
		return "locate_composer"
	case StateClearAndType:
		return "clear_and_type"
	case StateLocateSendControl:
		return "locate_send_control"
	case StateSubmit:
		return "submit"
	case StateConfirm:
		return "confirm"
	case StateTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timing bounds the waits of the flow.
type Timing struct {
	ComposerWait    time.Duration
	MenuWait        time.Duration
	ConfirmTimeout  time.Duration
	ConfirmInterval time.Duration
}

// DefaultTiming matches the site's usual rendering latencies.
var DefaultTiming = Timing{
	ComposerWait:    12 * time.Second,
	MenuWait:        3 * time.Second,
	ConfirmTimeout:  6 * time.Second,
	ConfirmInterval: 250 * time.Millisecond,
}

// Outcome reports how far a send got. Sent and Confirmed are both the
// confirmation result: a message is only counted as sent once it is seen.
type Outcome struct {
	Sent      bool
	Confirmed bool
	Target    string
	NeedLogin bool
	State     State
}

// Flow drives a page through opening a conversation and sending one message.
type Flow struct {
	urls   site.URLs
	timing Timing
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewFlow(urls site.URLs, timing Timing, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		urls:   urls,
		timing: timing,
		logger: logger.Named("composer"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Send delivers message to target. A login redirect or an unconfirmed send
// is reported in the Outcome; only failures that leave no way forward
// (navigation, no composer, no way to submit) are returned as errors.
func (f *Flow) Send(ctx context.Context, page browser.Page, target Target, message string) (Outcome, error) {
	out := Outcome{Target: target.Identifier()}
	dest, err := target.URL(f.urls)
	if err != nil {
		return out, err
	}

	var location, composerSel, sendSel string
	state := StateNavigateTarget
	for {
		out.State = state
		f.logger.Debug("Composer step.", zap.Stringer("state", state))

		switch state {
		case StateNavigateTarget:
			if err := page.Navigate(ctx, dest); err != nil {
				return out, err
			}
			if location, err = page.Location(ctx); err != nil {
				return out, fmt.Errorf("read location: %w", err)
			}
			if site.IsLoginRedirect(location) {
				state = StateNeedLogin
			} else {
				state = StateLocateThread
			}

		case StateNeedLogin:
			out.NeedLogin = true
			return out, nil

		case StateLocateThread:
			if !site.IsThreadURL(location) {
				opened := f.openThread(ctx, page)
				f.logger.Debug("Tried to open a thread from the profile.", zap.Bool("opened", opened))
			}
			state = StateLocateComposer

		case StateLocateComposer:
			sel, ok := f.waitFor(ctx, page, site.Composer, f.timing.ComposerWait)
			if !ok {
				return out, fmt.Errorf("%w: message composer", browser.ErrNotFound)
			}
			composerSel = sel
			state = StateClearAndType

		case StateClearAndType:
			if err := f.clearAndType(ctx, page, composerSel, message); err != nil {
				return out, err
			}
			state = StateLocateSendControl

		case StateLocateSendControl:
			sendSel, _ = f.lookup(ctx, page, site.SendControl)
			state = StateSubmit

		case StateSubmit:
			if err := f.submit(ctx, page, sendSel); err != nil {
				return out, err
			}
			state = StateConfirm

		case StateConfirm:
			if !f.confirm(ctx, page, message) {
				out.State = StateTimeout
				return out, nil
			}
			out.Sent, out.Confirmed = true, true
			return out, nil

		default:
			return out, fmt.Errorf("composer reached unexpected state %v", state)
		}
	}
}

// openThread tries the profile's message button, then the overflow menu.
// Neither is required: a missing control falls through to the composer wait.
func (f *Flow) openThread(ctx context.Context, page browser.Page) bool {
	if sel, ok := f.lookup(ctx, page, site.MessageButton); ok {
		err := page.Click(ctx, sel)
		if err == nil {
			return true
		}
		f.logger.Debug("Message button click failed.", zap.Error(err))
	}

	menu, ok := f.lookup(ctx, page, site.OptionsMenu)
	if !ok {
		f.logger.Debug("No way to open a thread from this page.")
		return false
	}
	if err := page.Click(ctx, menu); err != nil {
		f.logger.Debug("Options menu click failed.", zap.Error(err))
		return false
	}
	item, ok := f.waitFor(ctx, page, site.SendMessageMenuItem, f.timing.MenuWait)
	if !ok {
		return false
	}
	if err := page.Click(ctx, item); err != nil {
		f.logger.Debug("Send message menu item click failed.", zap.Error(err))
		return false
	}
	return true
}

func (f *Flow) clearAndType(ctx context.Context, page browser.Page, sel, message string) error {
	if err := page.Click(ctx, sel); err != nil {
		return fmt.Errorf("focus composer: %w", err)
	}
	if err := page.Press(ctx, "a", input.ModifierCtrl); err != nil {
		return fmt.Errorf("select composer text: %w", err)
	}
	if err := page.Press(ctx, kb.Backspace, 0); err != nil {
		return fmt.Errorf("clear composer: %w", err)
	}
	if err := page.Type(ctx, sel, message); err != nil {
		return fmt.Errorf("type message: %w", err)
	}
	return nil
}

// submit clicks the send control when one was found and falls back to Enter.
func (f *Flow) submit(ctx context.Context, page browser.Page, sendSel string) error {
	if sendSel != "" {
		err := page.Click(ctx, sendSel)
		if err == nil {
			return nil
		}
		f.logger.Debug("Send control click failed, pressing Enter.", zap.Error(err))
	}
	if err := page.Press(ctx, kb.Enter, 0); err != nil {
		return fmt.Errorf("submit message: %w", err)
	}
	return nil
}

// confirm polls the newest message row until it contains message or the
// confirmation timeout elapses.
func (f *Flow) confirm(ctx context.Context, page browser.Page, message string) bool {
	deadline := f.now().Add(f.timing.ConfirmTimeout)
	for {
		var last string
		if err := page.Evaluate(ctx, site.LastMessageRowScript, &last); err != nil {
			f.logger.Debug("Reading last message row failed.", zap.Error(err))
		} else if strings.Contains(last, message) {
			return true
		}

		remaining := deadline.Sub(f.now())
		if remaining <= 0 {
			return false
		}
		wait := f.timing.ConfirmInterval
		if wait > remaining {
			wait = remaining
		}
		if err := f.sleep(ctx, wait); err != nil {
			return false
		}
	}
}

// lookup looks a control up once. A lookup error counts as absent.
func (f *Flow) lookup(ctx context.Context, page browser.Page, loc browser.Locator) (string, bool) {
	sel, ok, err := page.Find(ctx, loc)
	if err != nil {
		f.logger.Debug("Probe failed.", zap.Error(err))
		return "", false
	}
	return sel, ok
}

// waitFor polls lookup until it hits or timeout elapses.
func (f *Flow) waitFor(ctx context.Context, page browser.Page, loc browser.Locator, timeout time.Duration) (string, bool) {
	deadline := f.now().Add(timeout)
	for {
		if sel, ok := f.lookup(ctx, page, loc); ok {
			return sel, true
		}
		remaining := deadline.Sub(f.now())
		if remaining <= 0 {
			return "", false
		}
		wait := f.timing.ConfirmInterval
		if wait > remaining {
			wait = remaining
		}
		if err := f.sleep(ctx, wait); err != nil {
			return "", false
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
