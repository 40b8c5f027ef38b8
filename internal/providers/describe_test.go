package providers

import "testing"

func TestParseSegments_PlainJSON(t *testing.T) {
	content := `[{"start":"00:00:00","end":"00:01:00","transcript":"hello","description":"intro"}]`

	segments, err := parseSegments(content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 1 || segments[0].Transcript != "hello" {
		t.Fatalf("segments = %+v", segments)
	}
}

func TestParseSegments_FencedJSON(t *testing.T) {
	content := "```json\n[{\"start\":\"00:00:00\",\"end\":\"00:00:10\",\"transcript\":\"t\",\"description\":\"d\"}]\n```"

	segments, err := parseSegments(content)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(segments) != 1 || segments[0].End != "00:00:10" {
		t.Fatalf("segments = %+v", segments)
	}
}

func TestParseSegments_Prose(t *testing.T) {
	if _, err := parseSegments("Sure! Here are the segments you asked for."); err == nil {
		t.Fatal("expected parse error for non-JSON content")
	}
}
