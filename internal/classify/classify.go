// Package classify parses stream URLs into platform/handle/kind triples.
// Pure and side-effect-free: same input always yields the same output.
package classify

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind is the shape of a classified URL.
type Kind string

const (
	KindChannel         Kind = "channel"
	KindVideo           Kind = "video"
	KindChannelID       Kind = "channel_id"
	KindGenericFallback Kind = "generic_fallback"
	KindParseError      Kind = "parse_error"
)

// Result is the output of Classify.
type Result struct {
	Platform string
	Handle   string
	Kind     Kind
}

var (
	twitchChannel = regexp.MustCompile(`^/([a-zA-Z0-9_]{4,25})/?$`)
	kickChannel   = regexp.MustCompile(`^/([a-zA-Z0-9_]+)/?$`)
	ytChannel     = regexp.MustCompile(`^/(?:@([a-zA-Z0-9_.-]+)|c/([a-zA-Z0-9_.-]+)|channel/([a-zA-Z0-9_-]+)|user/([a-zA-Z0-9_.-]+))/?`)
	ytVideoID     = regexp.MustCompile(`(?:/watch\?v=|youtu\.be/)([a-zA-Z0-9_-]{11})`)
)

// Classify parses rawURL per the ordered platform table: Twitch, YouTube,
// Kick, then a generic fallback derived from the second-to-last DNS label.
func Classify(rawURL string) Result {
	trimmed := strings.TrimSpace(rawURL)
	lower := strings.ToLower(trimmed)
	if trimmed == "" || !(strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) {
		return Result{Platform: "Unknown", Handle: "unknown_stream", Kind: KindParseError}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return Result{Platform: "Unknown", Handle: "unknown_stream", Kind: KindParseError}
	}
	host := strings.Replace(u.Host, "www.", "", 1)
	path := u.Path

	switch {
	case strings.Contains(host, "twitch.tv"):
		if m := twitchChannel.FindStringSubmatch(path); m != nil {
			return Result{Platform: "Twitch", Handle: m[1], Kind: KindChannel}
		}
		return Result{Platform: "Twitch", Handle: "unknown_user", Kind: KindParseError}

	case strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be"):
		if m := ytChannel.FindStringSubmatch(path); m != nil {
			handle := "unknown_channel"
			for _, g := range m[1:] {
				if g != "" {
					handle = g
					break
				}
			}
			return Result{Platform: "YouTube", Handle: handle, Kind: KindChannel}
		}
		if m := ytVideoID.FindStringSubmatch(trimmed); m != nil {
			return Result{Platform: "YouTube", Handle: m[1], Kind: KindVideo}
		}
		return Result{Platform: "YouTube", Handle: "unknown_youtube_url", Kind: KindParseError}

	case strings.Contains(host, "kick.com"):
		if m := kickChannel.FindStringSubmatch(path); m != nil {
			return Result{Platform: "Kick", Handle: m[1], Kind: KindChannel}
		}
		return Result{Platform: "Kick", Handle: "unknown_user", Kind: KindParseError}
	}

	return genericFallback(host, path)
}

func genericFallback(host, path string) Result {
	platform := "Unknown"
	if parts := strings.Split(host, "."); len(parts) > 1 {
		platform = parts[len(parts)-2]
	} else if len(parts) == 1 && parts[0] != "" {
		platform = parts[0]
	}

	var segs []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			segs = append(segs, p)
		}
	}
	handle := host
	if len(segs) > 0 {
		handle = segs[len(segs)-1]
	}
	return Result{Platform: title(platform), Handle: handle, Kind: KindGenericFallback}
}

// title mirrors Python's str.title() for the single-word platform labels
// this function ever receives (DNS labels and the literal "Unknown").
func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// RateLimitBucket returns the lowercased platform bucket name used by the
// rate limiter: "twitch", "youtube", "kick", or "default".
func (r Result) RateLimitBucket() string {
	switch strings.ToLower(r.Platform) {
	case "twitch", "youtube", "kick":
		return strings.ToLower(r.Platform)
	default:
		return "default"
	}
}
