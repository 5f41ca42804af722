// Package platform maps a media URL to the hosting platform it belongs to.
package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// Unknown is returned for hosts that match no supported platform.
const Unknown = "unknown"

const (
	YouTube   = "youtube"
	Instagram = "instagram"
	TikTok    = "tiktok"
	Twitter   = "twitter"
	Facebook  = "facebook"
)

type rule struct {
	name     string
	patterns []*regexp.Regexp
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{YouTube, compile(`youtube\.com`, `youtu\.be`)},
	{Instagram, compile(`instagram\.com`, `instagr\.am`)},
	{TikTok, compile(`tiktok\.com`, `vm\.tiktok\.com`)},
	{Twitter, compile(`twitter\.com`, `(^|\.)x\.com$`, `(^|\.)t\.co$`)},
	{Facebook, compile(`facebook\.com`, `fb\.watch`)},
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Classify returns the platform name for rawURL, or Unknown.
func Classify(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Unknown
	}
	host := u.Hostname()
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(host) {
				return r.name
			}
		}
	}
	return Unknown
}

// Supported reports whether rawURL belongs to a known platform.
func Supported(rawURL string) bool {
	return Classify(rawURL) != Unknown
}

// Names lists the supported platforms in match order.
func Names() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}
