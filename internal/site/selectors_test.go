// internal/site/selectors_test.go
package site

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageControlsMatchWholeLabels(t *testing.T) {
	for name, loc := range map[string]struct {
		exact bool
		scope string
	}{
		"message button":    {MessageButton.Exact, MessageButton.Scope},
		"send message item": {SendMessageMenuItem.Exact, SendMessageMenuItem.Scope},
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, loc.exact)
			assert.False(t, strings.Contains(loc.scope, `a[role="link"]`), "sidebar links are out of scope")
		})
	}
}
