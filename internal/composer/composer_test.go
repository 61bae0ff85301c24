// internal/composer/composer_test.go
package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/mocks"
	"github.com/xkilldash9x/igpilot/internal/site"
)

const base = "https://www.instagram.com"

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.t = c.t.Add(d)
	return nil
}

func newTestFlow(t *testing.T) (*Flow, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	f := NewFlow(site.NewURLs(base), DefaultTiming, zaptest.NewLogger(t))
	f.now = clock.now
	f.sleep = clock.sleep
	return f, clock
}

// lastRow makes Evaluate of the message row script report text.
func lastRow(page *mocks.MockPage, text string) *mock.Call {
	return page.On("Evaluate", mock.Anything, site.LastMessageRowScript, mock.Anything).
		Run(func(args mock.Arguments) {
			*(args.Get(2).(*string)) = text
		}).Return(nil)
}

func expectTyping(page *mocks.MockPage, composerSel, message string) {
	page.On("Click", mock.Anything, composerSel).Return(nil).Once()
	page.On("Press", mock.Anything, "a", input.ModifierCtrl).Return(nil).Once()
	page.On("Press", mock.Anything, kb.Backspace, input.Modifier(0)).Return(nil).Once()
	page.On("Type", mock.Anything, composerSel, message).Return(nil).Once()
}

func TestSend_OverflowMenuPath(t *testing.T) {
	flow, _ := newTestFlow(t)
	page := new(mocks.MockPage)

	page.On("Navigate", mock.Anything, base+"/bob/").Return(nil).Once()
	page.On("Location", mock.Anything).Return(base+"/bob/", nil).Once()
	page.On("Find", mock.Anything, site.MessageButton).Return("", false, nil).Once()
	page.On("Find", mock.Anything, site.OptionsMenu).Return("#options", true, nil).Once()
	page.On("Click", mock.Anything, "#options").Return(nil).Once()
	page.On("Find", mock.Anything, site.SendMessageMenuItem).Return("#menu-send", true, nil).Once()
	page.On("Click", mock.Anything, "#menu-send").Return(nil).Once()
	page.On("Find", mock.Anything, site.Composer).Return("#composer", true, nil).Once()
	expectTyping(page, "#composer", "hi")
	page.On("Find", mock.Anything, site.SendControl).Return("#send", true, nil).Once()
	page.On("Click", mock.Anything, "#send").Return(nil).Once()
	lastRow(page, "hi").Once()

	out, err := flow.Send(context.Background(), page, Target{Username: "bob"}, "hi")
	require.NoError(t, err)

	assert.True(t, out.Sent)
	assert.True(t, out.Confirmed)
	assert.False(t, out.NeedLogin)
	assert.Equal(t, "bob", out.Target)
	assert.Equal(t, StateConfirm, out.State)
	page.AssertExpectations(t)
}

func TestSend_MessageButtonPath(t *testing.T) {
	flow, _ := newTestFlow(t)
	page := new(mocks.MockPage)

	page.On("Navigate", mock.Anything, "https://www.instagram.com/carol/").Return(nil).Once()
	page.On("Location", mock.Anything).Return(base+"/carol/", nil).Once()
	page.On("Find", mock.Anything, site.MessageButton).Return("#msg", true, nil).Once()
	page.On("Click", mock.Anything, "#msg").Return(nil).Once()
	page.On("Find", mock.Anything, site.Composer).Return("#composer", true, nil).Once()
	expectTyping(page, "#composer", "hello")
	page.On("Find", mock.Anything, site.SendControl).Return("#send", true, nil).Once()
	page.On("Click", mock.Anything, "#send").Return(nil).Once()
	lastRow(page, "You: hello there? no, hello").Once()

	out, err := flow.Send(context.Background(), page, Target{ProfileURL: "https://www.instagram.com/carol/"}, "hello")
	require.NoError(t, err)
	assert.True(t, out.Confirmed)
	assert.Equal(t, "https://www.instagram.com/carol/", out.Target)
	page.AssertNotCalled(t, "Find", mock.Anything, site.OptionsMenu)
}

func TestSend_ThreadSkipsOpeningAndFallsBackToEnter(t *testing.T) {
	flow, _ := newTestFlow(t)
	page := new(mocks.MockPage)

	page.On("Navigate", mock.Anything, base+"/direct/t/42/").Return(nil).Once()
	page.On("Location", mock.Anything).Return(base+"/direct/t/42/", nil).Once()
	page.On("Find", mock.Anything, site.Composer).Return("#composer", true, nil).Once()
	expectTyping(page, "#composer", "ping")
	page.On("Find", mock.Anything, site.SendControl).Return("", false, nil).Once()
	page.On("Press", mock.Anything, kb.Enter, input.Modifier(0)).Return(nil).Once()
	lastRow(page, "ping").Once()

	out, err := flow.Send(context.Background(), page, Target{ThreadID: "42", Username: "ignored"}, "ping")
	require.NoError(t, err)
	assert.True(t, out.Confirmed)
	assert.Equal(t, "42", out.Target)
	page.AssertNotCalled(t, "Find", mock.Anything, site.MessageButton)
	page.AssertExpectations(t)
}

func TestSend_SendClickFailureFallsBackToEnter(t *testing.T) {
	flow, _ := newTestFlow(t)
	page := new(mocks.MockPage)

	page.On("Navigate", mock.Anything, "https://x.test/direct/t/1/").Return(nil).Once()
	page.On("Location", mock.Anything).Return("https://x.test/direct/t/1/", nil).Once()
	page.On("Find", mock.Anything, site.Composer).Return("#c", true, nil).Once()
	expectTyping(page, "#c", "yo")
	page.On("Find", mock.Anything, site.SendControl).Return("#send", true, nil).Once()
	page.On("Click", mock.Anything, "#send").Return(errors.New("node not visible")).Once()
	page.On("Press", mock.Anything, kb.Enter, input.Modifier(0)).Return(nil).Once()
	lastRow(page, "yo").Once()

	out, err := flow.Send(context.Background(), page, Target{DirectURL: "https://x.test/direct/t/1/"}, "yo")
	require.NoError(t, err)
	assert.True(t, out.Sent)
	page.AssertExpectations(t)
}

func TestSend_LoginRedirect(t *testing.T) {
	flow, _ := newTestFlow(t)
	page := new(mocks.MockPage)

	page.On("Navigate", mock.Anything, base+"/bob/").Return(nil).Once()
	page.On("Location", mock.Anything).Return(base+"/accounts/login/?next=%2Fbob%2F", nil).Once()

	out, err := flow.Send(context.Background(), page, Target{Username: "bob"}, "hi")
	require.NoError(t, err)
	assert.True(t, out.NeedLogin)
	assert.False(t, out.Sent)
	assert.False(t, out.Confirmed)
	assert.Equal(t, StateNeedLogin, out.State)
	page.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
	page.AssertNotCalled(t, "Click", mock.Anything, mock.Anything)
}

func TestSend_ConfirmationTimesOutAfterSixSeconds(t *testing.T) {
	flow, clock := newTestFlow(t)
	page := new(mocks.MockPage)

	page.On("Navigate", mock.Anything, base+"/direct/t/7/").Return(nil).Once()
	page.On("Location", mock.Anything).Return(base+"/direct/t/7/", nil).Once()
	page.On("Find", mock.Anything, site.Composer).Return("#c", true, nil).Once()
	expectTyping(page, "#c", "unique text")
	page.On("Find", mock.Anything, site.SendControl).Return("#send", true, nil).Once()
	page.On("Click", mock.Anything, "#send").Return(nil).Once()
	lastRow(page, "an older message")

	start := clock.now()
	out, err := flow.Send(context.Background(), page, Target{ThreadID: "7"}, "unique text")
	require.NoError(t, err, "an unconfirmed send is a result, not an error")

	assert.False(t, out.Sent)
	assert.False(t, out.Confirmed)
	assert.Equal(t, StateTimeout, out.State)
	assert.Equal(t, 6*time.Second, clock.now().Sub(start))
	// One read at t=0 and one after each 250 ms step.
	page.AssertNumberOfCalls(t, "Evaluate", 25)
}

func TestSend_ComposerNotFound(t *testing.T) {
	flow, clock := newTestFlow(t)
	page := new(mocks.MockPage)

	page.On("Navigate", mock.Anything, base+"/dan/").Return(nil).Once()
	page.On("Location", mock.Anything).Return(base+"/dan/", nil).Once()
	page.On("Find", mock.Anything, site.MessageButton).Return("", false, errors.New("evaluate failed")).Once()
	page.On("Find", mock.Anything, site.OptionsMenu).Return("", false, nil).Once()
	page.On("Find", mock.Anything, site.Composer).Return("", false, nil)

	start := clock.now()
	_, err := flow.Send(context.Background(), page, Target{Username: "dan"}, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNotFound)
	assert.Equal(t, 12*time.Second, clock.now().Sub(start))
	page.AssertNotCalled(t, "Type", mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_NavigationError(t *testing.T) {
	flow, _ := newTestFlow(t)
	page := new(mocks.MockPage)
	navErr := errors.New("net::ERR_NAME_NOT_RESOLVED")
	page.On("Navigate", mock.Anything, base+"/eve/").Return(navErr).Once()

	out, err := flow.Send(context.Background(), page, Target{Username: "@eve"}, "hi")
	assert.ErrorIs(t, err, navErr)
	assert.Equal(t, StateNavigateTarget, out.State)
}

func TestSend_NoTarget(t *testing.T) {
	flow, _ := newTestFlow(t)
	page := new(mocks.MockPage)

	_, err := flow.Send(context.Background(), page, Target{}, "hi")
	assert.ErrorIs(t, err, ErrNoTarget)
	page.AssertNotCalled(t, "Navigate", mock.Anything, mock.Anything)
}

func TestTargetResolution(t *testing.T) {
	urls := site.NewURLs(base)
	tests := []struct {
		name    string
		target  Target
		wantURL string
		wantID  string
	}{
		{"direct url wins", Target{DirectURL: "https://www.instagram.com/direct/t/9/", ThreadID: "1", Username: "u"}, "https://www.instagram.com/direct/t/9/", "https://www.instagram.com/direct/t/9/"},
		{"thread id", Target{ThreadID: "55", ProfileURL: "https://www.instagram.com/u/"}, base + "/direct/t/55/", "55"},
		{"profile url", Target{ProfileURL: "https://www.instagram.com/u/", Username: "v"}, "https://www.instagram.com/u/", "https://www.instagram.com/u/"},
		{"username", Target{Username: " bob "}, base + "/bob/", "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.target.URL(urls)
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got)
			assert.Equal(t, tt.wantID, tt.target.Identifier())
			assert.False(t, tt.target.Empty())
		})
	}
	assert.True(t, Target{Username: "  "}.Empty())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "locate_composer", StateLocateComposer.String())
	assert.Equal(t, "timeout", StateTimeout.String())
	assert.Equal(t, "state(99)", State(99).String())
}
