package service

import (
	"strings"
	"unicode/utf8"

	"github.com/mssola/useragent"
)

const (
	maxUserAgentLength = 512
	maxSubjectLength   = 256
)

// summarizeAgent reduces a User-Agent header to "Browser on OS", or
// "name (bot)" for crawlers.
func summarizeAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	browser = strings.TrimSpace(browser)
	if ua.Bot() {
		if browser == "" {
			browser = "unknown"
		}
		return browser + " (bot)"
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := strings.TrimSpace(ua.OS())
	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}
	if os == "" {
		return browser
	}
	return browser + " on " + os
}

// storable makes client-supplied text safe for a Postgres TEXT column:
// invalid UTF-8 becomes U+FFFD, NUL bytes are dropped, and the result is cut
// to at most n bytes without splitting a character.
func storable(s string, n int) string {
	s = strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
