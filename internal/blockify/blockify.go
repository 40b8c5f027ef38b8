// Package blockify turns one ingested source into the ordered content
// segments that describe it to the model, plus a truncated display variant
// for inspection.
package blockify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/erg0nix/samtale/internal/core"
)

// DefaultPreview is the display-variant truncation bound in runes.
const DefaultPreview = 500

// fingerprintLen is how much of an encoded image payload the display variant
// keeps.
const fingerprintLen = 50

const sectionRule = "--------------------"

type Builder struct {
	Preview int
}

func New(preview int) Builder {
	if preview <= 0 {
		preview = DefaultPreview
	}
	return Builder{Preview: preview}
}

// Build produces the full and display content blocks for a source. The source
// is never partially blockified: any malformed content returns a
// *core.BlockifyError and both blocks are discarded.
func (b Builder) Build(src *core.Source) (core.ContentBlock, core.ContentBlock, error) {
	switch src.Kind {
	case core.KindDocument:
		return b.buildDocument(src)
	case core.KindVideo:
		return b.buildVideo(src)
	default:
		return nil, nil, &core.BlockifyError{SourceName: src.Name, Reason: fmt.Sprintf("unknown source kind %q", src.Kind)}
	}
}

func (b Builder) buildDocument(src *core.Source) (core.ContentBlock, core.ContentBlock, error) {
	var content, display core.ContentBlock

	lead := core.TextSegment(fmt.Sprintf(
		"Document name: %s.\nThis document contains %d pages with text and images.",
		src.Name, len(src.Pages),
	))
	content = append(content, lead)
	display = append(display, lead)

	for pageIndex, page := range src.Pages {
		header := core.TextSegment(fmt.Sprintf(
			"\n\n\n%s\n## Document %d - Page %d:-\n\n",
			sectionRule, src.Ordinal, pageIndex+1,
		))
		content = append(content, header)
		display = append(display, header)

		remaining := page.Markdown

		for imageIndex, image := range page.Images {
			ref := fmt.Sprintf("![%s](%s)", image.ID, image.ID)

			pos := strings.Index(remaining, ref)
			if pos < 0 {
				return nil, nil, &core.BlockifyError{
					SourceName: src.Name,
					Reason:     fmt.Sprintf("page %d: no markdown reference for image %q", pageIndex+1, image.ID),
				}
			}

			if before := remaining[:pos]; len(before) > 0 {
				content = append(content, core.TextSegment(before+"\n\n"))
				display = append(display, core.TextSegment(b.truncate(before)+"\n\n"))
			}
			remaining = remaining[pos+len(ref):]

			name := mediaName(src.Ordinal, pageIndex, imageIndex)
			intro := core.TextSegment(fmt.Sprintf("Attaching an image in the page. Image name: %s.\n\n", name))
			content = append(content, intro)
			display = append(display, intro)

			content = append(content, core.ImageSegment(image.Base64))
			display = append(display, core.ImageSegment(fingerprint(image.Base64)))
		}

		if remaining = strings.TrimSpace(remaining); len(remaining) > 0 {
			content = append(content, core.TextSegment(fmt.Sprintf("Remaining text in the page: %s\n\n", remaining)))
			display = append(display, core.TextSegment(fmt.Sprintf("Remaining text in the page: %s\n\n", b.truncate(remaining))))
		}
	}

	return content, display, nil
}

func (b Builder) buildVideo(src *core.Source) (core.ContentBlock, core.ContentBlock, error) {
	var content, display core.ContentBlock

	lead := core.TextSegment(fmt.Sprintf(
		"Video name: %s.\nThis video contains %d timestamped segments with transcript and description.",
		src.Name, len(src.Segments),
	))
	content = append(content, lead)
	display = append(display, lead)

	for segIndex, segment := range src.Segments {
		start, err := parseTimestamp(segment.Start)
		if err != nil {
			return nil, nil, &core.BlockifyError{SourceName: src.Name, Reason: fmt.Sprintf("segment %d: %v", segIndex, err)}
		}
		end, err := parseTimestamp(segment.End)
		if err != nil {
			return nil, nil, &core.BlockifyError{SourceName: src.Name, Reason: fmt.Sprintf("segment %d: %v", segIndex, err)}
		}
		if end < start {
			return nil, nil, &core.BlockifyError{
				SourceName: src.Name,
				Reason:     fmt.Sprintf("segment %d: end %s before start %s", segIndex, segment.End, segment.Start),
			}
		}

		header := core.TextSegment(fmt.Sprintf(
			"\n\n\n%s\n## Video %d - Segment %s (%s - %s):-\n\n",
			sectionRule, src.Ordinal, segmentName(src.Ordinal, segIndex), segment.Start, segment.End,
		))
		content = append(content, header)
		display = append(display, header)

		transcript := fmt.Sprintf("Transcript:\n%s\n\n", segment.Transcript)
		content = append(content, core.TextSegment(transcript))
		display = append(display, core.TextSegment(b.truncate(transcript)))

		description := fmt.Sprintf("Description:\n%s\n\n", segment.Description)
		content = append(content, core.TextSegment(description))
		display = append(display, core.TextSegment(b.truncate(description)))
	}

	return content, display, nil
}

// Truncate applies the display-variant bound to arbitrary text; callers use
// it for assistant replies and user questions as well as source segments.
func (b Builder) Truncate(text string) string {
	return b.truncate(text)
}

func (b Builder) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= b.Preview {
		return text
	}
	return string(runes[:b.Preview]) + "..."
}

func fingerprint(encoded string) string {
	if len(encoded) <= fingerprintLen {
		return encoded
	}
	return encoded[:fingerprintLen] + "..."
}

func mediaName(ordinal, page, image int) string {
	return fmt.Sprintf("doc-%d-page-%d-img-%d", ordinal, page, image)
}

func segmentName(ordinal, segment int) string {
	return fmt.Sprintf("video-%d-seg-%d", ordinal, segment)
}

func parseTimestamp(value string) (int, error) {
	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("bad timestamp %q", value)
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad timestamp %q", value)
		}
		total = total*60 + n
	}

	return total, nil
}
