// internal/site/extract.go
package site

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Item is one harvested entity: a follower link or a notification entry.
type Item struct {
	Key        string `json:"key"`
	Username   string `json:"username"`
	Href       string `json:"href"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp,omitempty"`
	AgeSeconds int64  `json:"ageSeconds,omitempty"`
}

// ParseFollowers returns the profile links found in a container's markup,
// keyed by username, in document order. When a username is linked more than
// once the first non-empty link text wins.
func ParseFollowers(html string) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse followers markup: %w", err)
	}

	var items []Item
	index := make(map[string]int)
	doc.Find(ProfileAnchorSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		username, ok := ProfileSegment(href)
		if !ok {
			return
		}
		text := collapseSpace(a.Text())
		if i, seen := index[username]; seen {
			if items[i].Text == "" {
				items[i].Text = text
			}
			return
		}
		index[username] = len(items)
		items = append(items, Item{Key: username, Username: username, Href: href, Text: text})
	})
	return items, nil
}

// ParseNotifications returns notification entries newer than maxAge. Each
// block must link a profile; its age comes from a <time datetime> element or
// from a relative phrase in its text. Blocks with no resolvable age are dropped.
// A block wrapping other notification blocks is skipped in favor of them.
func ParseNotifications(html string, now time.Time, maxAge time.Duration) ([]Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse notifications markup: %w", err)
	}

	var items []Item
	seen := make(map[string]bool)
	doc.Find(NotificationBlockSelector).Each(func(_ int, block *goquery.Selection) {
		if wrapsNotification(block) {
			return
		}
		username, href := firstProfileLink(block)
		if username == "" {
			return
		}
		text := collapseSpace(block.Text())

		var (
			age       time.Duration
			resolved  bool
			timestamp string
		)
		if ts, ok := block.Find(TimeSelector).First().Attr("datetime"); ok {
			timestamp = ts
			age, resolved = AgeFromTimestamp(ts, now)
		}
		if !resolved {
			age, resolved = ParseRelativeAge(text)
		}
		if !resolved || age > maxAge {
			return
		}

		key := username + "|" + truncateRunes(text, NotificationKeyTextLimit)
		if seen[key] {
			return
		}
		seen[key] = true
		items = append(items, Item{
			Key:        key,
			Username:   username,
			Href:       href,
			Text:       text,
			Timestamp:  timestamp,
			AgeSeconds: int64(age / time.Second),
		})
	})
	return items, nil
}

// wrapsNotification reports whether block contains another block that links a
// profile. Nested controls without a profile link, such as a follow button,
// do not count.
func wrapsNotification(block *goquery.Selection) bool {
	wraps := false
	block.Find(NotificationBlockSelector).EachWithBreak(func(_ int, inner *goquery.Selection) bool {
		if u, _ := firstProfileLink(inner); u != "" {
			wraps = true
			return false
		}
		return true
	})
	return wraps
}

func firstProfileLink(s *goquery.Selection) (username, href string) {
	s.Find(ProfileAnchorSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, _ := a.Attr("href")
		if u, ok := ProfileSegment(h); ok {
			username, href = u, h
			return false
		}
		return true
	})
	return username, href
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
