// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/igpilot/internal/browser"
)

// -- Page Mock --

// MockPage mocks browser.Page. Evaluate results are written by the test
// through .Run on the expectation.
type MockPage struct {
	mock.Mock
}

var _ browser.Page = (*MockPage)(nil)

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockPage) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Title(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Evaluate(ctx context.Context, script string, res interface{}) error {
	args := m.Called(ctx, script, res)
	return args.Error(0)
}

func (m *MockPage) OuterHTML(ctx context.Context, sel string) (string, error) {
	args := m.Called(ctx, sel)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Find(ctx context.Context, loc browser.Locator) (string, bool, error) {
	args := m.Called(ctx, loc)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockPage) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	args := m.Called(ctx, sel, timeout)
	return args.Error(0)
}

func (m *MockPage) Click(ctx context.Context, sel string) error {
	args := m.Called(ctx, sel)
	return args.Error(0)
}

func (m *MockPage) Type(ctx context.Context, sel, text string) error {
	args := m.Called(ctx, sel, text)
	return args.Error(0)
}

func (m *MockPage) Press(ctx context.Context, key string, mods input.Modifier) error {
	args := m.Called(ctx, key, mods)
	return args.Error(0)
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// -- Session Mock --

// MockSession mocks the browser session owner. WithPage hands Page to the
// callback unless the expectation returns an error.
type MockSession struct {
	mock.Mock
	Page browser.Page
}

func (m *MockSession) EnsureContext(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSession) WithPage(ctx context.Context, fn func(ctx context.Context, page browser.Page) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx, m.Page)
}

func (m *MockSession) SeedCookies(ctx context.Context, cookies []browser.Cookie) ([]string, error) {
	args := m.Called(ctx, cookies)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
