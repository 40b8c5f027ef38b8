package sources

import "testing"

func TestExtractYouTubeID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?list=abc&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/watch?v=dQw4w9WgXcQ", ""},
		{"not a url", ""},
	}

	for _, c := range cases {
		if got := ExtractYouTubeID(c.url); got != c.want {
			t.Errorf("ExtractYouTubeID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestParseYouTubeURLs(t *testing.T) {
	text := "https://youtu.be/dQw4w9WgXcQ\n\nsome commentary\nhttps://www.youtube.com/watch?v=9bZkp7q19f0\n"

	uploads := ParseYouTubeURLs(text)
	if len(uploads) != 2 {
		t.Fatalf("parsed %d uploads, want 2", len(uploads))
	}

	if uploads[0].Name != "YouTube Video (dQw4w9WgXcQ)" {
		t.Errorf("name = %q", uploads[0].Name)
	}
	if uploads[1].URL != "https://www.youtube.com/watch?v=9bZkp7q19f0" {
		t.Errorf("url = %q", uploads[1].URL)
	}
}
