package resolver

import (
	"regexp"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

var urlPattern = regexp.MustCompile(`(?i)^(https?://)?([\w.-]+)\.([a-z]{2,})(/\S*)?$`)

type platformPatterns struct {
	platform domain.Platform
	patterns []*regexp.Regexp
}

// Order matters: the first platform with a matching pattern wins and
// within a platform the most specific pattern comes first.
var platforms = []platformPatterns{
	{
		platform: domain.PlatformYouTube,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:youtube\.com/(?:watch\?v=|shorts/|embed/)|youtu\.be/)([\w-]+)`),
		},
	},
	{
		platform: domain.PlatformInstagram,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)instagram\.com/(?:p|reel|tv)/([\w-]+)`),
		},
	},
	{
		platform: domain.PlatformTikTok,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)tiktok\.com/@[\w.-]+/video/(\d+)`),
			regexp.MustCompile(`(?i)vm\.tiktok\.com/(\w+)`),
		},
	},
	{
		platform: domain.PlatformFacebook,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)facebook\.com/(?:watch/?\?v=|[\w.]+/videos/)(\d+)`),
			regexp.MustCompile(`(?i)fb\.watch/(\w+)`),
		},
	},
	{
		platform: domain.PlatformTwitter,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:twitter|x)\.com/\w+/status/(\d+)`),
		},
	},
	{
		platform: domain.PlatformVimeo,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)vimeo\.com/(\d+)`),
		},
	},
}

// detect returns the platform and identifier for a URL-shaped string
func detect(url string) (domain.Platform, string) {
	for _, p := range platforms {
		for _, re := range p.patterns {
			if m := re.FindStringSubmatch(url); m != nil {
				return p.platform, m[1]
			}
		}
	}
	return domain.PlatformUnknown, ""
}
