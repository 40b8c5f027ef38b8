package sources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/erg0nix/samtale/internal/core"
)

var youtubeRegex = regexp.MustCompile(
	`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`,
)

// ExtractYouTubeID pulls the 11-character video ID out of the common YouTube
// URL shapes; empty string if the URL is not a YouTube link.
func ExtractYouTubeID(url string) string {
	match := youtubeRegex.FindStringSubmatch(url)
	if match == nil {
		return ""
	}
	return match[1]
}

// ParseYouTubeURLs splits free-form text (one URL per line) into video
// uploads, skipping anything that is not a YouTube URL.
func ParseYouTubeURLs(text string) []Upload {
	var uploads []Upload

	for _, line := range strings.Split(text, "\n") {
		url := strings.TrimSpace(line)
		if url == "" {
			continue
		}

		id := ExtractYouTubeID(url)
		if id == "" {
			continue
		}

		uploads = append(uploads, Upload{
			Name: fmt.Sprintf("YouTube Video (%s)", id),
			Kind: core.KindVideo,
			URL:  url,
		})
	}

	return uploads
}
