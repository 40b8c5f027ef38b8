package providers

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/erg0nix/samtale/internal/core"
)

func TestToChatMessages_PlainTextUsesContentField(t *testing.T) {
	turns := []core.LedgerTurn{
		{Role: core.RoleSystem, Content: core.ContentBlock{core.TextSegment("be helpful")}},
		{Role: core.RoleUser, Content: core.ContentBlock{core.TextSegment("part one, "), core.TextSegment("part two")}},
	}

	messages := toChatMessages(turns)
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}

	if messages[0].Content != "be helpful" || messages[0].MultiContent != nil {
		t.Errorf("system message = %+v", messages[0])
	}
	if messages[1].Content != "part one, part two" {
		t.Errorf("joined content = %q", messages[1].Content)
	}
}

func TestToChatMessages_ImagesUseMultiContent(t *testing.T) {
	turns := []core.LedgerTurn{{
		Role: core.RoleUser,
		Content: core.ContentBlock{
			core.TextSegment("see this chart"),
			core.ImageSegment("data:image/png;base64,AAAA"),
		},
	}}

	messages := toChatMessages(turns)

	if messages[0].Content != "" {
		t.Errorf("content field = %q, want empty", messages[0].Content)
	}
	if len(messages[0].MultiContent) != 2 {
		t.Fatalf("parts = %d, want 2", len(messages[0].MultiContent))
	}
	if messages[0].MultiContent[0].Type != openai.ChatMessagePartTypeText {
		t.Errorf("first part type = %v", messages[0].MultiContent[0].Type)
	}
	if messages[0].MultiContent[1].ImageURL.URL != "data:image/png;base64,AAAA" {
		t.Errorf("image url = %q", messages[0].MultiContent[1].ImageURL.URL)
	}
}
