package system

import (
	"net/url"
	"regexp"
	"strings"
)

// GoogleSearchURL returns the Google results page for query.
func GoogleSearchURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(strings.TrimSpace(query))
}

// YouTubeSearchURL returns the YouTube results page for query.
func YouTubeSearchURL(query string) string {
	return "https://www.youtube.com/results?search_query=" + url.QueryEscape(strings.TrimSpace(query))
}

var (
	siteFiller = regexp.MustCompile(`(?i)\b(open|website|karo|par|pe)\b`)
	spokenDot  = regexp.MustCompile(`(?i)\s+dot\s+`)
)

// WebsiteURL turns a spoken or typed site name ("github dot com", "open
// example.org") into an absolute URL. An empty result returns "".
func WebsiteURL(name string) string {
	name = spokenDot.ReplaceAllString(" "+name+" ", ".")
	name = siteFiller.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), "")
	if name == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(name), "http://") || strings.HasPrefix(strings.ToLower(name), "https://") {
		return name
	}
	return "https://" + name
}

// WhatsAppURL returns the click-to-chat link for phone with message
// prefilled. Non-digits are removed from phone.
func WhatsAppURL(phone, message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	u := "https://wa.me/" + digits
	if message != "" {
		u += "?text=" + url.QueryEscape(message)
	}
	return u
}
