package core

import (
	"encoding/json"
	"fmt"
)

type SegmentKind string

const (
	SegmentText  SegmentKind = "text"
	SegmentImage SegmentKind = "image_url"
)

// Segment is one element of a content block: either plain text or an inline
// image carried as a data URL.
type Segment struct {
	Kind  SegmentKind
	Text  string
	Image string
}

func TextSegment(text string) Segment {
	return Segment{Kind: SegmentText, Text: text}
}

func ImageSegment(dataURL string) Segment {
	return Segment{Kind: SegmentImage, Image: dataURL}
}

type segmentJSON struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLJSON `json:"image_url,omitempty"`
}

type imageURLJSON struct {
	URL string `json:"url"`
}

// MarshalJSON emits the chat-API wire shape:
// {"type":"text","text":...} or {"type":"image_url","image_url":{"url":...}}.
func (s Segment) MarshalJSON() ([]byte, error) {
	out := segmentJSON{Type: string(s.Kind)}

	switch s.Kind {
	case SegmentText:
		out.Text = s.Text
	case SegmentImage:
		out.ImageURL = &imageURLJSON{URL: s.Image}
	default:
		return nil, fmt.Errorf("marshal segment: unknown kind %q", s.Kind)
	}

	return json.Marshal(out)
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var in segmentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	switch SegmentKind(in.Type) {
	case SegmentText:
		s.Kind = SegmentText
		s.Text = in.Text
	case SegmentImage:
		s.Kind = SegmentImage
		if in.ImageURL != nil {
			s.Image = in.ImageURL.URL
		}
	default:
		return fmt.Errorf("unmarshal segment: unknown type %q", in.Type)
	}

	return nil
}
