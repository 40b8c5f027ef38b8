package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erg0nix/samtale/internal/blockify"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/ledger"
	"github.com/erg0nix/samtale/internal/snapshot"
	"github.com/erg0nix/samtale/internal/sources"
	"github.com/erg0nix/samtale/internal/turn"
)

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, _ []byte, fileName string) ([]core.Page, error) {
	return []core.Page{{Markdown: "content of " + fileName}}, nil
}

type stubDescriber struct{}

func (stubDescriber) Describe(context.Context, sources.MediaRef) ([]core.VideoSegment, error) {
	return nil, nil
}

type countingStreamer struct {
	calls int
}

func (s *countingStreamer) StreamChat(context.Context, []core.LedgerTurn) (<-chan core.StreamDelta, error) {
	s.calls++

	ch := make(chan core.StreamDelta, 1)
	ch <- core.StreamDelta{Text: "restored reply"}
	close(ch)

	return ch, nil
}

// testServices wires a conversation over a data directory the way NewServices
// does, with stub collaborators in place of the network providers.
func testServices(dataDir string, streamer turn.ChatStreamer) *Services {
	builder := blockify.New(0)
	writer := snapshot.NewWriter(dataDir)
	conversationLedger := ledger.New()
	transcript := ledger.NewTranscript()

	manager := sources.NewManager(conversationLedger, transcript, builder, stubExtractor{}, stubDescriber{}, writer)
	engine := turn.NewEngine(conversationLedger, transcript, manager, streamer, builder, writer, time.Minute)

	return &Services{
		Builder:    builder,
		Ledger:     conversationLedger,
		Transcript: transcript,
		Snapshot:   writer,
		Sources:    manager,
		Engine:     engine,
	}
}

// Every CLI subcommand is a fresh process, so a source added in one
// invocation must still be active, and answerable about, in the next.
func TestServices_RestoreContinuesAcrossProcesses(t *testing.T) {
	dataDir := t.TempDir()

	pdfPath := filepath.Join(t.TempDir(), "a.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		t.Fatalf("write stub file: %v", err)
	}

	first := testServices(dataDir, &countingStreamer{})
	result := first.Sources.Add(context.Background(), sources.Upload{Name: "a.pdf", Kind: core.KindDocument, Path: pdfPath})
	if len(result.Added) != 1 {
		t.Fatalf("add result = %+v", result)
	}

	streamer := &countingStreamer{}
	second := testServices(dataDir, streamer)
	second.Restore()

	active := second.Sources.Active()
	if len(active) != 1 || active[0].Name != "a.pdf" {
		t.Fatalf("restored pool = %+v, want a.pdf", active)
	}
	if second.Ledger.Len() != 2 {
		t.Fatalf("restored ledger len = %d, want 2", second.Ledger.Len())
	}
	if position, ok := second.Ledger.PositionOf(active[0].ID); !ok || position != 1 {
		t.Fatalf("restored position = %d, %v; want 1", position, ok)
	}

	if err := second.Engine.Submit("what is in the document?"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	updates, err := second.Engine.Drive(context.Background())
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}

	var terminal turn.Update
	for update := range updates {
		terminal = update
	}

	if streamer.calls != 1 {
		t.Errorf("model calls = %d, want 1 (restored turn must reach the model)", streamer.calls)
	}
	if terminal.State != turn.StateFinalized || terminal.Text != "restored reply" {
		t.Errorf("terminal update = %+v", terminal)
	}

	last, _ := second.Transcript.Last()
	if last.Content != "restored reply" {
		t.Errorf("transcript tail = %q", last.Content)
	}
}

func TestServices_ResetAllEmptiesPoolArtifact(t *testing.T) {
	dataDir := t.TempDir()

	pdfPath := filepath.Join(t.TempDir(), "a.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		t.Fatalf("write stub file: %v", err)
	}

	first := testServices(dataDir, &countingStreamer{})
	first.Sources.Add(context.Background(), sources.Upload{Name: "a.pdf", Kind: core.KindDocument, Path: pdfPath})

	if err := first.ResetAll(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	second := testServices(dataDir, &countingStreamer{})
	second.Restore()

	if len(second.Sources.Active()) != 0 {
		t.Error("pool survived a full reset")
	}
	if second.Ledger.Len() != 0 {
		t.Error("ledger survived a full reset")
	}
}
