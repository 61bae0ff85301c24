package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/igpilot/internal/browser"
	"github.com/xkilldash9x/igpilot/internal/config"
	"github.com/xkilldash9x/igpilot/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockBrowser adds Shutdown to the session mock.
type mockBrowser struct {
	mocks.MockSession
}

func (m *mockBrowser) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestAssembleAndShutdown(t *testing.T) {
	cfg := config.NewDefaultConfig()
	b := new(mockBrowser)
	b.On("SeedCookies", mock.Anything, []browser.Cookie{{Name: "sessionid", Value: "x"}}).Return([]string{"sessionid"}, nil)
	b.On("Shutdown", mock.Anything).Return(nil).Once()

	components, err := Assemble(cfg, b, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, components.Engine)
	require.NotNil(t, components.Queue)

	// The engine is wired to the queue and session.
	names, err := components.Engine.SeedCookies(context.Background(), []browser.Cookie{{Name: "sessionid", Value: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"sessionid"}, names)

	components.Shutdown()
	b.AssertExpectations(t)

	// A drained queue rejects later work.
	_, err = components.Engine.SeedCookies(context.Background(), nil)
	assert.Error(t, err)
}

func TestShutdownLogsBrowserError(t *testing.T) {
	b := new(mockBrowser)
	b.On("Shutdown", mock.Anything).Return(errors.New("browser already gone")).Once()

	components, err := Assemble(config.NewDefaultConfig(), b, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.NotPanics(t, components.Shutdown)
	b.AssertExpectations(t)
}

func TestShutdownWithNothingInitialized(t *testing.T) {
	assert.NotPanics(t, (&Components{}).Shutdown)
}

func TestFactoryCreate(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetBrowserProfileDir(t.TempDir())

	components, err := NewComponentFactory().Create(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, isManager := components.Browser.(*browser.Manager)
	assert.True(t, isManager)

	// No browser was launched, so shutdown is immediate.
	components.Shutdown()
}
