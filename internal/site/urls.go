// internal/site/urls.go
package site

import (
	"net/url"
	"strings"
)

// URLs builds the site's page addresses from a base such as "https://www.instagram.com".
type URLs struct {
	Base string
}

func NewURLs(base string) URLs {
	return URLs{Base: strings.TrimRight(base, "/")}
}

func (u URLs) Home() string     { return u.Base + "/" }
func (u URLs) Settings() string { return u.Base + "/accounts/edit/" }

func (u URLs) Notifications() string { return u.Base + "/accounts/activity/" }

func (u URLs) Profile(username string) string {
	return u.Base + "/" + url.PathEscape(username) + "/"
}

func (u URLs) Followers(username string) string {
	return u.Base + "/" + url.PathEscape(username) + "/followers/"
}

func (u URLs) Thread(id string) string {
	return u.Base + "/direct/t/" + url.PathEscape(id) + "/"
}

// IsLoginRedirect reports whether the page landed on the login form.
func IsLoginRedirect(location string) bool {
	return strings.HasPrefix(pathOf(location), "/accounts/login")
}

// IsThreadURL reports whether location is an open direct-message thread.
func IsThreadURL(location string) bool {
	return strings.HasPrefix(pathOf(location), "/direct/t/")
}

func pathOf(location string) string {
	parsed, err := url.Parse(location)
	if err != nil || parsed.Path == "" {
		return location
	}
	return parsed.Path
}

// ProfileSegment returns the username addressed by a site-relative profile
// href such as "/alice/" or "/alice/?hl=ru". Non-profile sections are rejected.
func ProfileSegment(href string) (string, bool) {
	if excludedPathPattern.MatchString(href) {
		return "", false
	}
	m := profilePathPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}
