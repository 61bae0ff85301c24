// internal/site/selectors.go
package site

import (
	"fmt"
	"regexp"

	"github.com/xkilldash9x/igpilot/internal/browser"
)

// Site structure is hard-assumed. Everything that depends on the markup
// lives here so control flow never embeds a selector.

const (
	DialogSelector        = `div[role="dialog"]`
	SettingsFormSelector  = `form[action="/accounts/edit/"]`
	ProfileAnchorSelector = `a[href^="/"]`

	// NotificationBlockSelector matches the pressable container of one notification.
	NotificationBlockSelector = `div[role="button"], [role="button"], div[tabindex]`
	TimeSelector              = `time[datetime]`

	// NotificationKeyTextLimit bounds the text part of a notification key, in runes.
	NotificationKeyTextLimit = 80
)

var (
	excludedPathPattern = regexp.MustCompile(`^/(accounts|explore|p|reel|direct|stories)/`)
	profilePathPattern  = regexp.MustCompile(`^/([^/?#]+)/(\?[^#]*)?$`)
)

// FollowersLinkSelectors lists the profile's followers link candidates, most specific first.
func FollowersLinkSelectors(username string) []string {
	return []string{
		fmt.Sprintf(`a[href='/%s/followers/']`, username),
		fmt.Sprintf(`a[href^='/%s/followers']`, username),
		`a[role='link'][href*='/followers']`,
		`a[href*='/followers']`,
	}
}

// Composer flow controls. Text is matched case-insensitively in both locales.
var (
	// MessageButton and SendMessageMenuItem match whole labels only: the
	// navigation sidebar carries a "Messages" link.
	MessageButton = browser.Locator{
		Text:  []string{"Message", "Написать", "Отправить сообщение"},
		Scope: `div[role="button"], button`,
		Exact: true,
	}

	OptionsMenu = browser.Locator{
		CSS: []string{`svg[aria-label="Options"]`, `svg[aria-label="Параметры"]`},
	}

	SendMessageMenuItem = browser.Locator{
		Text:  []string{"Send message", "Отправить сообщение"},
		Scope: `button, div[role="button"], div[role="menuitem"]`,
		Exact: true,
	}

	Composer = browser.Locator{
		CSS: []string{
			`div[contenteditable="true"][role="textbox"]`,
			`[contenteditable="true"][aria-placeholder="Message..."]`,
			`[contenteditable="true"][aria-placeholder="Напишите сообщение..."]`,
			`textarea[placeholder="Message..."]`,
			`textarea[placeholder="Напишите сообщение..."]`,
			`textarea`,
		},
	}

	SendControl = browser.Locator{
		CSS: []string{
			`svg[aria-label="Send"]`,
			`svg[aria-label="Отправить"]`,
			`[role="button"][aria-label="Send"]`,
			`[role="button"][aria-label="Отправить"]`,
		},
		Text:  []string{"Send", "Отправить"},
		Scope: `button, div[role="button"]`,
	}
)

// LoginProbeScript fetches an endpoint that only answers 200 for a logged-in
// session. It resolves to the HTTP status, or -1 when the request fails.
const LoginProbeScript = `(async () => {
  try {
    const r = await fetch("/api/v1/accounts/edit/web_form_data/", { credentials: "include" });
    return r.status;
  } catch (e) {
    return -1;
  }
})()`

// ScrollScript advances the follower/notification list by one step. When a
// dialog is open its scrollable descendant is scrolled to the bottom and the
// script returns true; otherwise the window scrolls and it returns false.
const ScrollScript = `(() => {
  const dlg = document.querySelector('div[role="dialog"]');
  if (dlg) {
    const nodes = [dlg, ...dlg.querySelectorAll('*')];
    const box = nodes.find((n) => n.scrollHeight > n.clientHeight + 4 &&
      /(auto|scroll)/.test(getComputedStyle(n).overflowY));
    if (box) {
      box.scrollTop = box.scrollHeight;
      return true;
    }
  }
  window.scrollBy(0, Math.max(400, Math.floor(window.innerHeight * 0.9)));
  return false;
})()`

// LastMessageRowScript returns the text of the most recently rendered message row.
const LastMessageRowScript = `(() => {
  const rows = document.querySelectorAll('div[role="row"], div[role="listitem"], div[data-scope="messages_table"] > div');
  if (!rows.length) return "";
  const last = rows[rows.length - 1];
  return (last.innerText || last.textContent || "").trim();
})()`
