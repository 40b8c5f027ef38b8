package core

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type SourceKind string

const (
	KindDocument SourceKind = "document"
	KindVideo    SourceKind = "video"
)

// ContentBlock is the ordered sequence of segments one source (or one chat
// message) contributes to the ledger.
type ContentBlock []Segment

// LedgerTurn is one entry of the model-facing transcript. Display mirrors
// Content structurally with large payloads truncated; it is never sent to the
// model.
type LedgerTurn struct {
	Role    Role         `json:"role"`
	Content ContentBlock `json:"content"`
	Display ContentBlock `json:"-"`
}

// ChatMessage is one entry of the user-visible transcript.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PageImage is one embedded image extracted from a document page.
type PageImage struct {
	ID     string `json:"id"`
	Base64 string `json:"base64"`
}

// Page is one OCR-extracted document page: markdown text with inline image
// references of the form ![id](id).
type Page struct {
	Markdown string      `json:"markdown"`
	Images   []PageImage `json:"images"`
}

// VideoSegment is one timestamped slice of a video's transcript and
// description. Start and End use HH:MM:SS.
type VideoSegment struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Transcript  string `json:"transcript"`
	Description string `json:"description"`
}

// Source is one ingested document or video. Immutable once created; a removed
// source is never resurrected, a re-upload of the same name becomes a new
// Source with a new ID.
type Source struct {
	ID       SourceID
	Name     string
	Kind     SourceKind
	Ordinal  int
	URL      string // set for URL-ingested videos, empty for local files
	Pages    []Page
	Segments []VideoSegment
}

// ItemCount returns the number of pages or video segments.
func (s *Source) ItemCount() int {
	if s.Kind == KindVideo {
		return len(s.Segments)
	}
	return len(s.Pages)
}

// StreamDelta is one increment of a streamed chat completion. A terminal
// error arrives as a single delta with Err set before the stream closes.
type StreamDelta struct {
	Text string
	Err  error
}
