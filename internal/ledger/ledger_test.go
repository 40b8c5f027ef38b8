package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/erg0nix/samtale/internal/core"
)

// stubBuilder tags each source's block with its name so tests can check which
// source produced which turn.
type stubBuilder struct{}

func (stubBuilder) Build(src *core.Source) (core.ContentBlock, core.ContentBlock, error) {
	content := core.ContentBlock{core.TextSegment("block for " + src.Name)}
	display := core.ContentBlock{core.TextSegment("display for " + src.Name)}
	return content, display, nil
}

type failingBuilder struct{}

func (failingBuilder) Build(src *core.Source) (core.ContentBlock, core.ContentBlock, error) {
	return nil, nil, fmt.Errorf("no block for %s", src.Name)
}

func textBlock(text string) core.ContentBlock {
	return core.ContentBlock{core.TextSegment(text)}
}

func TestLedger_AppendReturnsIndex(t *testing.T) {
	l := New()

	if got := l.Append(core.RoleSystem, textBlock("sys"), textBlock("sys")); got != 0 {
		t.Fatalf("first append index = %d, want 0", got)
	}
	if got := l.Append(core.RoleUser, textBlock("u"), textBlock("u")); got != 1 {
		t.Fatalf("second append index = %d, want 1", got)
	}
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
}

func TestLedger_AppendForSourceRecordsPosition(t *testing.T) {
	l := New()
	l.Append(core.RoleSystem, textBlock("sys"), textBlock("sys"))

	id := core.NewSourceID()
	index := l.AppendForSource(id, textBlock("doc"), textBlock("doc"))

	if index != 1 {
		t.Fatalf("source index = %d, want 1", index)
	}

	got, ok := l.PositionOf(id)
	if !ok || got != 1 {
		t.Fatalf("PositionOf = %d, %v; want 1, true", got, ok)
	}
}

func TestLedger_ReservePositionAdvancesCounter(t *testing.T) {
	l := New()

	a := core.NewSourceID()
	b := core.NewSourceID()

	if got := l.ReservePosition(a); got != 0 {
		t.Fatalf("first reservation = %d, want 0", got)
	}
	if got := l.ReservePosition(b); got != 1 {
		t.Fatalf("second reservation = %d, want 1", got)
	}
	if l.NextReservation() != 2 {
		t.Fatalf("NextReservation = %d, want 2", l.NextReservation())
	}
}

func TestLedger_ReplaceAtOverwritesInPlace(t *testing.T) {
	l := New()
	l.Append(core.RoleSystem, textBlock("sys"), textBlock("sys"))
	l.Append(core.RoleUser, textBlock("original"), textBlock("original"))

	if err := l.ReplaceAt(1, textBlock("tombstone"), textBlock("tombstone")); err != nil {
		t.Fatalf("ReplaceAt failed: %v", err)
	}

	turns := l.Turns()
	if turns[1].Content[0].Text != "tombstone" {
		t.Errorf("turn 1 content = %q, want tombstone", turns[1].Content[0].Text)
	}
	if turns[1].Role != core.RoleUser {
		t.Errorf("turn 1 role changed to %v", turns[1].Role)
	}
	if l.Len() != 2 {
		t.Errorf("len changed to %d", l.Len())
	}
}

func TestLedger_ReplaceAtOutOfRange(t *testing.T) {
	l := New()
	l.Append(core.RoleSystem, textBlock("sys"), textBlock("sys"))

	err := l.ReplaceAt(5, textBlock("x"), textBlock("x"))
	if !errors.Is(err, core.ErrIndexOutOfRange) {
		t.Fatalf("error = %v, want ErrIndexOutOfRange", err)
	}

	if err := l.ReplaceAt(-1, textBlock("x"), textBlock("x")); !errors.Is(err, core.ErrIndexOutOfRange) {
		t.Fatalf("negative index error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestLedger_RebuildFromSources(t *testing.T) {
	l := New()
	l.Append(core.RoleUser, textBlock("stale"), textBlock("stale"))

	sources := []*core.Source{
		{ID: core.NewSourceID(), Name: "a.pdf", Kind: core.KindDocument},
		{ID: core.NewSourceID(), Name: "b.pdf", Kind: core.KindDocument},
	}

	positions, err := l.RebuildFromSources(sources, stubBuilder{})
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	turns := l.Turns()
	// system + 2 sources + end marker
	if len(turns) != 4 {
		t.Fatalf("len = %d, want 4", len(turns))
	}

	if turns[0].Role != core.RoleSystem {
		t.Errorf("first turn role = %v, want system", turns[0].Role)
	}

	for i, src := range sources {
		index, ok := positions[src.ID]
		if !ok {
			t.Fatalf("no position for source %d", i)
		}
		want := "block for " + src.Name
		if got := turns[index].Content[0].Text; got != want {
			t.Errorf("turn %d content = %q, want %q", index, got, want)
		}
	}

	if positions[sources[0].ID] != 1 || positions[sources[1].ID] != 2 {
		t.Errorf("positions = %v, want 1 and 2 in source order", positions)
	}

	if l.NextReservation() != 4 {
		t.Errorf("NextReservation = %d, want 4", l.NextReservation())
	}
}

func TestLedger_RebuildFailureLeavesLedgerUntouched(t *testing.T) {
	l := New()
	l.Append(core.RoleUser, textBlock("keep"), textBlock("keep"))

	sources := []*core.Source{{ID: core.NewSourceID(), Name: "a.pdf", Kind: core.KindDocument}}

	if _, err := l.RebuildFromSources(sources, failingBuilder{}); err == nil {
		t.Fatal("expected rebuild error")
	}

	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
	if l.Turns()[0].Content[0].Text != "keep" {
		t.Error("existing turn was replaced despite rebuild failure")
	}
}

func TestLedger_RestoreRoundTrip(t *testing.T) {
	l := New()
	id := core.NewSourceID()
	l.Append(core.RoleSystem, textBlock("sys"), textBlock("sys"))
	l.AppendForSource(id, textBlock("doc"), textBlock("doc"))

	restored := New()
	restored.Restore(l.Turns(), l.Positions(), l.NextReservation())

	if restored.Len() != l.Len() {
		t.Fatalf("restored len = %d, want %d", restored.Len(), l.Len())
	}

	got, ok := restored.PositionOf(id)
	if !ok || got != 1 {
		t.Fatalf("restored PositionOf = %d, %v; want 1, true", got, ok)
	}
}
