package ledger

import (
	"testing"

	"github.com/erg0nix/samtale/internal/core"
)

func TestTranscript_SubmitShape(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("what is this about?")
	tr.AppendPlaceholder()

	messages := tr.Messages()
	if len(messages) != 2 {
		t.Fatalf("len = %d, want 2", len(messages))
	}
	if messages[0].Role != core.RoleUser || messages[0].Content != "what is this about?" {
		t.Errorf("user message = %+v", messages[0])
	}
	if messages[1].Role != core.RoleAssistant || messages[1].Content != Placeholder {
		t.Errorf("placeholder = %+v", messages[1])
	}
}

func TestTranscript_SetLastSplicesIntoPlaceholder(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("q")
	tr.AppendPlaceholder()

	tr.SetLast("The answer")
	tr.SetLast("The answer is 42.")

	last, ok := tr.Last()
	if !ok || last.Content != "The answer is 42." {
		t.Fatalf("last = %+v, %v", last, ok)
	}
	if tr.Len() != 2 {
		t.Errorf("len = %d, splicing must not append", tr.Len())
	}
}

func TestTranscript_SetLastOnEmptyIsNoop(t *testing.T) {
	tr := NewTranscript()
	tr.SetLast("nothing to overwrite")

	if tr.Len() != 0 {
		t.Fatalf("len = %d, want 0", tr.Len())
	}
}

func TestTranscript_LastAssistantSkipsPlaceholder(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("q1")
	tr.AppendAssistant("first reply")
	tr.AppendUser("q2")
	tr.AppendPlaceholder()

	got, ok := tr.LastAssistant()
	if !ok || got != "first reply" {
		t.Fatalf("LastAssistant = %q, %v; want first reply", got, ok)
	}
}

func TestTranscript_LastAssistantEmpty(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("q")
	tr.AppendPlaceholder()

	if _, ok := tr.LastAssistant(); ok {
		t.Fatal("expected no finished assistant message")
	}
}

func TestTranscript_RestoreRoundTrip(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("q")
	tr.AppendAssistant("a")

	restored := NewTranscript()
	restored.Restore(tr.Messages())

	if restored.Len() != 2 {
		t.Fatalf("restored len = %d, want 2", restored.Len())
	}

	last, _ := restored.Last()
	if last.Content != "a" {
		t.Errorf("restored last = %q, want a", last.Content)
	}
}
