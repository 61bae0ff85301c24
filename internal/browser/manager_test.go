// Filename: browser/manager_test.go
package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/igpilot/internal/config"
)

func testBrowserConfig(t *testing.T) config.BrowserConfig {
	t.Helper()
	cfg := config.NewDefaultConfig().Browser()
	cfg.ProfileDir = filepath.Join(t.TempDir(), "profile")
	return cfg
}

func TestLaunchFlags(t *testing.T) {
	cfg := testBrowserConfig(t)

	t.Run("headless defaults", func(t *testing.T) {
		flags := launchFlags(cfg, "/tmp/p")
		assert.Equal(t, "/tmp/p", flags["user-data-dir"])
		assert.Equal(t, true, flags["no-sandbox"])
		assert.Equal(t, true, flags["disable-dev-shm-usage"])
		assert.Equal(t, "1366,800", flags["window-size"])
		assert.Equal(t, "ru-RU", flags["lang"])
		assert.Equal(t, true, flags["headless"])
		assert.NotContains(t, flags, "hide-scrollbars")
		assert.NotContains(t, flags, "disable-blink-features", "no fingerprint masking switches")
	})

	t.Run("headed mode removes headless switches", func(t *testing.T) {
		headed := cfg
		headed.Headless = false
		flags := launchFlags(headed, "/tmp/p")
		assert.Equal(t, false, flags["headless"])
		assert.Equal(t, false, flags["hide-scrollbars"])
		assert.Equal(t, false, flags["mute-audio"])
	})

	t.Run("extra args override and extend", func(t *testing.T) {
		custom := cfg
		custom.Args = []string{"--proxy-server=http://127.0.0.1:8080", "--no-sandbox=false", "--incognito", "  "}
		flags := launchFlags(custom, "/tmp/p")
		assert.Equal(t, "http://127.0.0.1:8080", flags["proxy-server"])
		assert.Equal(t, false, flags["no-sandbox"])
		assert.Equal(t, true, flags["incognito"])
		assert.NotContains(t, flags, "")
	})
}

func TestAllocatorOptionsIncludeExecPath(t *testing.T) {
	cfg := testBrowserConfig(t)
	withPath := cfg
	withPath.ExecPath = "/opt/chrome/chrome"

	m := NewManager(cfg, config.SiteConfig{}, zaptest.NewLogger(t))
	m2 := NewManager(withPath, config.SiteConfig{}, zaptest.NewLogger(t))
	assert.Len(t, m2.allocatorOptions("/tmp/p"), len(m.allocatorOptions("/tmp/p"))+1)
}

func TestEnsureContextLaunchFailure(t *testing.T) {
	cfg := testBrowserConfig(t)
	cfg.ExecPath = filepath.Join(t.TempDir(), "no-such-chrome")
	cfg.LaunchTimeout = 5 * time.Second

	m := NewManager(cfg, config.SiteConfig{CookieDomain: ".example.com"}, zaptest.NewLogger(t))

	err := m.EnsureContext(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLaunch))
	assert.False(t, m.live())

	// The profile directory is created before launching.
	_, statErr := os.Stat(cfg.ProfileDir)
	assert.NoError(t, statErr)

	_, err = m.SeedCookies(context.Background(), []Cookie{{Name: "sessionid", Value: "x"}})
	assert.ErrorIs(t, err, ErrLaunch)

	called := false
	err = m.WithPage(context.Background(), func(context.Context, Page) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLaunch)
	assert.False(t, called)

	assert.NoError(t, m.Shutdown(context.Background()), "shutdown without a browser is a no-op")
}

// requireChrome skips tests that need a real Chromium. Set IGPILOT_CHROME_TESTS=1 to run them.
func requireChrome(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv("IGPILOT_CHROME_TESTS") == "" {
		t.Skip("set IGPILOT_CHROME_TESTS=1 to run tests against a real browser")
	}
}

const fixturePage = `<!doctype html><html><head><title>Fixture</title></head><body>
<div role="dialog"><ul><li><a href="/alice/">alice</a></li></ul></div>
<button id="hidden" style="display:none">Message</button>
<a role="link" href="/direct/inbox/">Messages</a>
<div role="button">  Message  </div>
<div contenteditable="true" id="box"></div>
</body></html>`

func TestManagerAgainstRealBrowser(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(fixturePage))
	}))
	defer srv.Close()

	m := NewManager(testBrowserConfig(t), config.SiteConfig{CookieDomain: "127.0.0.1"}, zaptest.NewLogger(t))
	defer func() { _ = m.Shutdown(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	require.NoError(t, m.EnsureContext(ctx))
	require.NoError(t, m.EnsureContext(ctx), "second call reuses the context")
	assert.True(t, m.live())

	names, err := m.SeedCookies(ctx, []Cookie{{Name: "csrftoken", Value: "abc"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"csrftoken"}, names)

	err = m.WithPage(ctx, func(ctx context.Context, page Page) error {
		require.NoError(t, page.Navigate(ctx, srv.URL))

		title, err := page.Title(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Fixture", title)

		loc, err := page.Location(ctx)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(loc, srv.URL))

		html, err := page.OuterHTML(ctx, `div[role="dialog"]`)
		require.NoError(t, err)
		assert.Contains(t, html, `href="/alice/"`)

		_, err = page.OuterHTML(ctx, "#missing")
		assert.ErrorIs(t, err, ErrNotFound)

		sel, ok, err := page.Find(ctx, Locator{Text: []string{"message"}})
		require.NoError(t, err)
		require.True(t, ok, "visible text match expected")
		require.NoError(t, page.WaitVisible(ctx, sel, 2*time.Second))

		// An exact locator ignores labels that merely contain the text.
		_, ok, err = page.Find(ctx, Locator{Text: []string{"message"}, Scope: `a[role="link"]`, Exact: true})
		require.NoError(t, err)
		assert.False(t, ok, "Messages link must not match an exact Message locator")

		_, ok, err = page.Find(ctx, Locator{Text: []string{"message"}, Scope: `a[role="link"]`})
		require.NoError(t, err)
		assert.True(t, ok, "substring match applies without Exact")

		_, ok, err = page.Find(ctx, Locator{CSS: []string{"#nope"}, Text: []string{"nothing like this"}})
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, page.Click(ctx, "#box"))
		require.NoError(t, page.Type(ctx, "#box", "hello"))
		require.NoError(t, page.Press(ctx, "a", input.ModifierCtrl))

		var text string
		require.NoError(t, page.Evaluate(ctx, `document.querySelector('#box').innerText`, &text))
		assert.Equal(t, "hello", text)

		png, err := page.Screenshot(ctx)
		require.NoError(t, err)
		assert.True(t, len(png) > 8 && string(png[1:4]) == "PNG")
		return nil
	})
	require.NoError(t, err)
}
