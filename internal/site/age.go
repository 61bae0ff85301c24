// internal/site/age.go
package site

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ageUnits maps every recognized unit spelling to its duration. Adding a
// language means adding its spellings here.
var ageUnits = map[string]time.Duration{
	// English, long and short forms.
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "wk": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,

	// Russian.
	"с": time.Second, "сек": time.Second, "секунда": time.Second, "секунду": time.Second, "секунды": time.Second, "секунд": time.Second,
	"мин": time.Minute, "минута": time.Minute, "минуту": time.Minute, "минуты": time.Minute, "минут": time.Minute,
	"ч": time.Hour, "час": time.Hour, "часа": time.Hour, "часов": time.Hour,
	"д": 24 * time.Hour, "дн": 24 * time.Hour, "день": 24 * time.Hour, "дня": 24 * time.Hour, "дней": 24 * time.Hour,
	"н": 7 * 24 * time.Hour, "нед": 7 * 24 * time.Hour, "неделя": 7 * 24 * time.Hour, "неделю": 7 * 24 * time.Hour,
	"недели": 7 * 24 * time.Hour, "недель": 7 * 24 * time.Hour,
}

// zeroAgePhrases denote "now" in either locale.
var zeroAgePhrases = []string{"just now", "только что", "сейчас"}

var agePattern = buildAgePattern()

// buildAgePattern matches "<number><optional space><unit>" where the unit is
// not followed by another letter. Longer spellings are tried first so that
// "minutes" is not read as "m".
func buildAgePattern() *regexp.Regexp {
	units := make([]string, 0, len(ageUnits))
	for u := range ageUnits {
		units = append(units, regexp.QuoteMeta(u))
	}
	sort.Slice(units, func(i, j int) bool {
		if len(units[i]) != len(units[j]) {
			return len(units[i]) > len(units[j])
		}
		return units[i] < units[j]
	})
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(\d+)\s*(` + strings.Join(units, "|") + `)(?:[^\p{L}]|$)`)
}

// ParseRelativeAge extracts the first relative age phrase from text, such as
// "5m", "2 hours ago", "3 ч." or "только что".
func ParseRelativeAge(text string) (time.Duration, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range zeroAgePhrases {
		if strings.Contains(lower, phrase) {
			return 0, true
		}
	}

	m := agePattern.FindStringSubmatch(lower)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	unit, ok := ageUnits[m[2]]
	if !ok {
		return 0, false
	}
	// Counts that do not fit in a Duration are unresolvable.
	if n > math.MaxInt64/int64(unit) {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

// AgeFromTimestamp resolves the age of an ISO-8601 timestamp relative to now.
// Timestamps in the future count as age zero.
func AgeFromTimestamp(ts string, now time.Time) (time.Duration, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(ts))
	if err != nil {
		return 0, false
	}
	age := now.Sub(t)
	if age < 0 {
		age = 0
	}
	return age, true
}
