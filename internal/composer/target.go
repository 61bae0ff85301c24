// internal/composer/target.go
package composer

import (
	"errors"
	"strings"

	"github.com/xkilldash9x/igpilot/internal/site"
)

// ErrNoTarget is returned when a Target carries no recipient identifier.
var ErrNoTarget = errors.New("no message recipient given")

// Target addresses a message recipient. The first non-empty field in the
// order DirectURL, ThreadID, ProfileURL, Username is used.
type Target struct {
	Username   string
	ProfileURL string
	ThreadID   string
	DirectURL  string
}

// Empty reports whether no identifier is set.
func (t Target) Empty() bool {
	return t.Identifier() == ""
}

// Identifier echoes the value that addresses the recipient.
func (t Target) Identifier() string {
	for _, v := range []string{t.DirectURL, t.ThreadID, t.ProfileURL, t.Username} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// URL resolves the page to open for this target.
func (t Target) URL(urls site.URLs) (string, error) {
	switch {
	case strings.TrimSpace(t.DirectURL) != "":
		return strings.TrimSpace(t.DirectURL), nil
	case strings.TrimSpace(t.ThreadID) != "":
		return urls.Thread(strings.TrimSpace(t.ThreadID)), nil
	case strings.TrimSpace(t.ProfileURL) != "":
		return strings.TrimSpace(t.ProfileURL), nil
	case strings.TrimSpace(t.Username) != "":
		return urls.Profile(strings.TrimPrefix(strings.TrimSpace(t.Username), "@")), nil
	default:
		return "", ErrNoTarget
	}
}
