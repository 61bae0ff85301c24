// -- cmd/cmd_test.go --
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/config"
	"github.com/xkilldash9x/igpilot/internal/engine"
	"github.com/xkilldash9x/igpilot/internal/mocks"
	"github.com/xkilldash9x/igpilot/internal/service"
	"github.com/xkilldash9x/igpilot/internal/site"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockBrowser struct {
	mocks.MockSession
}

func (m *mockBrowser) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeFactory assembles real components around a mocked browser and keeps
// the configuration it was handed.
type fakeFactory struct {
	session *mockBrowser
	cfg     config.Interface
}

func (f *fakeFactory) Create(cfg config.Interface, logger *zap.Logger) (*service.Components, error) {
	f.cfg = cfg
	return service.Assemble(cfg, f.session, logger)
}

func useFactory(t *testing.T, session *mockBrowser) *fakeFactory {
	t.Helper()
	f := &fakeFactory{session: session}
	orig := componentFactory
	componentFactory = func() service.ComponentFactory { return f }
	t.Cleanup(func() { componentFactory = orig })
	return f
}

func newBrowser(page browser.Page) *mockBrowser {
	b := &mockBrowser{}
	b.Page = page
	b.On("Shutdown", mock.Anything).Return(nil)
	return b
}

func execute(ctx context.Context, stdin string, args ...string) (string, error) {
	root := NewRootCommand()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(context.Background(), "", "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestRunCommandPrintsResult(t *testing.T) {
	page := new(mocks.MockPage)
	page.On("Navigate", mock.Anything, mock.Anything).Return(nil).Once()
	page.On("Evaluate", mock.Anything, site.LoginProbeScript, mock.Anything).
		Run(func(args mock.Arguments) { *(args.Get(2).(*int)) = 200 }).
		Return(nil).Once()
	page.On("Location", mock.Anything).Return("https://www.instagram.com/", nil)
	page.On("Title", mock.Anything).Return("Instagram", nil)

	b := newBrowser(page)
	b.On("WithPage", mock.Anything).Return(nil).Once()
	f := useFactory(t, b)

	profile := filepath.Join(t.TempDir(), "profile")
	out, err := execute(context.Background(), "", "run", "--action", "loginCheck", "--profile-dir", profile)
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "loginCheck", res["action"])
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, true, res["isLoggedIn"])
	assert.Equal(t, "Instagram", res["title"])

	require.NotNil(t, f.cfg)
	assert.Equal(t, profile, f.cfg.Browser().ProfileDir, "flag overrides the configured profile")
	b.AssertExpectations(t)
	page.AssertExpectations(t)
}

func TestRunCommandInvalidRequestPrintsFailedResult(t *testing.T) {
	b := newBrowser(new(mocks.MockPage))
	useFactory(t, b)

	out, err := execute(context.Background(), "", "run", "--action", "followersLinks")
	require.NoError(t, err)

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, false, res["ok"])
	assert.Contains(t, res["error"], "username required")
	b.AssertNotCalled(t, "WithPage", mock.Anything)
}

func TestRunCommandUnknownAction(t *testing.T) {
	useFactory(t, newBrowser(new(mocks.MockPage)))

	out, err := execute(context.Background(), "", "run", "--action", "unknownThing")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnrecognizedAction)
	assert.Empty(t, out)
}

func TestSeedCookiesCommand(t *testing.T) {
	b := newBrowser(new(mocks.MockPage))
	want := []browser.Cookie{{Name: "sessionid", Value: "abc"}}
	b.On("SeedCookies", mock.Anything, want).Return([]string{"sessionid"}, nil).Once()
	useFactory(t, b)

	out, err := execute(context.Background(), `[{"name":"sessionid","value":"abc"}]`, "seed-cookies", "-")
	require.NoError(t, err)

	var payload struct {
		OK    bool     `json:"ok"`
		Added []string `json:"added"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.True(t, payload.OK)
	assert.Equal(t, []string{"sessionid"}, payload.Added)
	b.AssertExpectations(t)
}

func TestReadCookies(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []browser.Cookie
		wantErr bool
	}{
		{"bare array", `[{"name":"a","value":"1"}]`, []browser.Cookie{{Name: "a", Value: "1"}}, false},
		{"wrapped", `{"cookies":[{"name":"b","value":"2"}]}`, []browser.Cookie{{Name: "b", Value: "2"}}, false},
		{"empty", "  \n", nil, false},
		{"garbage", `{"cookies":`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readCookies(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMissingConfigFileFails(t *testing.T) {
	useFactory(t, newBrowser(new(mocks.MockPage)))

	_, err := execute(context.Background(), "", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestServeCommandStopsOnCancel(t *testing.T) {
	b := newBrowser(new(mocks.MockPage))
	useFactory(t, b)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := execute(ctx, "", "serve", "--port", "0", "--token", "t0k")
	require.NoError(t, err)
	b.AssertCalled(t, "Shutdown", mock.Anything)
}
