// internal/browser/page.go
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
)

var (
	// ErrNotFound is returned when a selector or locator matches nothing.
	ErrNotFound = errors.New("element not found")
	// ErrLaunch wraps failures to start or attach to the browser.
	ErrLaunch = errors.New("browser launch failed")
)

// Locator describes an element by candidate CSS selectors and, failing
// those, by visible text. Text matching is case-insensitive on normalized
// whitespace and is limited to elements matching Scope. Unless Exact is set,
// a label containing one of the texts also matches.
type Locator struct {
	CSS   []string `json:"css"`
	Text  []string `json:"text"`
	Scope string   `json:"scope"`
	Exact bool     `json:"exact"`
}

// DefaultTextScope is the element set searched for text matches when a Locator has no Scope.
const DefaultTextScope = `button, a, div[role="button"]`

// Page is a single browser tab. Implementations bound every call by the
// page timeout unless a longer wait is passed explicitly.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Evaluate runs script in the page, awaiting a returned promise, and
	// decodes the result into res (which may be nil).
	Evaluate(ctx context.Context, script string, res interface{}) error
	// OuterHTML returns the markup of the first match of sel, or ErrNotFound.
	OuterHTML(ctx context.Context, sel string) (string, error)
	// Find resolves a Locator to a selector that uniquely addresses the hit.
	Find(ctx context.Context, loc Locator) (string, bool, error)

	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error
	Click(ctx context.Context, sel string) error
	Type(ctx context.Context, sel, text string) error
	Press(ctx context.Context, key string, mods input.Modifier) error

	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Cookie is a name/value pair scoped by the manager to the configured site domain.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UnmarshalJSON accepts a number or boolean value as its literal text, since
// exported cookie jars often carry ids such as ds_user_id unquoted.
func (c *Cookie) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = raw.Name
	c.Value = ""

	v := bytes.TrimSpace(raw.Value)
	switch {
	case len(v) == 0 || bytes.Equal(v, []byte("null")):
	case v[0] == '"':
		return json.Unmarshal(v, &c.Value)
	case v[0] == '{' || v[0] == '[':
		return fmt.Errorf("cookie %q: value must be a string, number or boolean", raw.Name)
	default:
		c.Value = string(v)
	}
	return nil
}
