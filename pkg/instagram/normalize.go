package instagram

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	// usernameSeparators splits free-form batch input
	usernameSeparators = regexp.MustCompile(`[\s,;]+`)

	// validUsername mirrors Instagram's own username rules
	validUsername = regexp.MustCompile(`^[a-z0-9._]{1,30}$`)
)

// NormalizeUsername turns user input (a bare name, "@name" or a profile URL)
// into the canonical lowercase username used as the cache key. It never
// validates; an empty result means no username was given.
func NormalizeUsername(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if hasHTTPScheme(s) {
		if u, err := url.Parse(s); err == nil {
			for _, segment := range strings.Split(u.EscapedPath(), "/") {
				if segment != "" {
					s = segment
					break
				}
			}
		}
	}

	s = strings.TrimPrefix(s, "@")

	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	return strings.ToLower(s)
}

// SplitUsernames splits a comma, semicolon or whitespace separated list and
// normalizes each entry, dropping empties. Duplicates are kept.
func SplitUsernames(raw string) []string {
	var out []string
	for _, part := range usernameSeparators.Split(raw, -1) {
		if name := NormalizeUsername(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// IsValidUsername reports whether a normalized username looks like one
// Instagram would accept. It is informational only.
func IsValidUsername(username string) bool {
	return validUsername.MatchString(username)
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
