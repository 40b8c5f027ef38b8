package snapshot

import (
	"fmt"
	"strings"

	"github.com/erg0nix/samtale/internal/core"
)

// Structured per-source export. Only active sources appear here: a removed
// source is fully absent regardless of the tombstone kept inside the ledger.

type exportText struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type exportImage struct {
	ImageID     int    `json:"image_id"`
	ImageTag    string `json:"image_tag"`
	ImageBase64 string `json:"image_base64_data"`
}

type exportPage struct {
	PageNum      int           `json:"page_num"`
	PageMarkdown exportText    `json:"page_markdown_content"`
	PageImages   []exportImage `json:"page_image_content"`
}

type exportDocument struct {
	DocumentName  string       `json:"document_name"`
	DocumentID    int          `json:"document_id"`
	InfoAvailable int          `json:"document_info_available"`
	Content       []exportPage `json:"document_content"`
}

type exportTimestamp struct {
	TimestampNum   int        `json:"video_timestamp_num"`
	TimestampStart string     `json:"timestamp_start"`
	TimestampEnd   string     `json:"timestamp_end"`
	Transcript     exportText `json:"timestamp_transcript_content"`
	Description    exportText `json:"timestamp_description_content"`
}

type exportVideo struct {
	VideoName     string            `json:"video_name"`
	VideoID       int               `json:"video_id"`
	InfoAvailable int               `json:"video_info_available"`
	Content       []exportTimestamp `json:"video_content"`
}

type exportJSON struct {
	Documents []exportDocument `json:"documents"`
	Videos    []exportVideo    `json:"videos"`
}

// sourceJSON is the raw pool artifact shape. Unlike the export it keeps the
// markdown and image payloads exactly as ingested, so a restart can
// repopulate the manager and re-blockify if the ledger needs rebuilding.
type sourceJSON struct {
	ID       core.SourceID       `json:"id"`
	Name     string              `json:"name"`
	Kind     core.SourceKind     `json:"kind"`
	Ordinal  int                 `json:"ordinal"`
	URL      string              `json:"url,omitempty"`
	Pages    []core.Page         `json:"pages,omitempty"`
	Segments []core.VideoSegment `json:"segments,omitempty"`
}

// SaveSources rewrites both source artifacts: the structured export for
// inspection and the raw pool for restart recovery.
func (w *Writer) SaveSources(sources []*core.Source) error {
	out := exportJSON{Documents: []exportDocument{}, Videos: []exportVideo{}}

	for _, src := range sources {
		switch src.Kind {
		case core.KindDocument:
			out.Documents = append(out.Documents, exportOneDocument(src))
		case core.KindVideo:
			out.Videos = append(out.Videos, exportOneVideo(src))
		}
	}

	if err := w.writeJSON(sourcesFile, out); err != nil {
		return err
	}

	raw := make([]sourceJSON, 0, len(sources))
	for _, src := range sources {
		raw = append(raw, sourceJSON{
			ID:       src.ID,
			Name:     src.Name,
			Kind:     src.Kind,
			Ordinal:  src.Ordinal,
			URL:      src.URL,
			Pages:    src.Pages,
			Segments: src.Segments,
		})
	}

	return w.writeJSON(poolFile, raw)
}

// LoadSources restores the active pool from the raw artifact. The export
// artifact is never read back: its markdown has image references rewritten
// to display tags.
func (w *Writer) LoadSources() ([]*core.Source, error) {
	var raw []sourceJSON
	if err := w.readJSON(poolFile, &raw); err != nil {
		return nil, err
	}

	sources := make([]*core.Source, 0, len(raw))
	for _, entry := range raw {
		sources = append(sources, &core.Source{
			ID:       entry.ID,
			Name:     entry.Name,
			Kind:     entry.Kind,
			Ordinal:  entry.Ordinal,
			URL:      entry.URL,
			Pages:    entry.Pages,
			Segments: entry.Segments,
		})
	}

	return sources, nil
}

func exportOneDocument(src *core.Source) exportDocument {
	doc := exportDocument{
		DocumentName:  src.Name,
		DocumentID:    src.Ordinal,
		InfoAvailable: 1,
		Content:       make([]exportPage, 0, len(src.Pages)),
	}

	for pageIndex, page := range src.Pages {
		markdown := page.Markdown
		images := make([]exportImage, 0, len(page.Images))

		for imageIndex, image := range page.Images {
			tag := fmt.Sprintf("doc-%d-page-%d-img-%d", src.Ordinal, pageIndex, imageIndex)
			ref := fmt.Sprintf("![%s](%s)", image.ID, image.ID)
			markdown = strings.Replace(markdown, ref, "<"+tag+">", 1)

			images = append(images, exportImage{
				ImageID:     imageIndex,
				ImageTag:    tag,
				ImageBase64: image.Base64,
			})
		}

		doc.Content = append(doc.Content, exportPage{
			PageNum:      pageIndex,
			PageMarkdown: exportText{ContentType: "text", Content: markdown},
			PageImages:   images,
		})
	}

	return doc
}

func exportOneVideo(src *core.Source) exportVideo {
	video := exportVideo{
		VideoName:     src.Name,
		VideoID:       src.Ordinal,
		InfoAvailable: 1,
		Content:       make([]exportTimestamp, 0, len(src.Segments)),
	}

	for segIndex, segment := range src.Segments {
		video.Content = append(video.Content, exportTimestamp{
			TimestampNum:   segIndex,
			TimestampStart: segment.Start,
			TimestampEnd:   segment.End,
			Transcript:     exportText{ContentType: "text", Content: segment.Transcript},
			Description:    exportText{ContentType: "text", Content: segment.Description},
		})
	}

	return video
}
