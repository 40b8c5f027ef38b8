package turn

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/erg0nix/samtale/internal/blockify"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/ledger"
)

type stubPool struct {
	sources []*core.Source
}

func (p stubPool) Active() []*core.Source { return p.sources }

// scriptedStreamer replays a fixed delta sequence and records what it was
// asked to send.
type scriptedStreamer struct {
	deltas    []core.StreamDelta
	openErr   error
	calls     int
	lastTurns []core.LedgerTurn
}

func (s *scriptedStreamer) StreamChat(_ context.Context, turns []core.LedgerTurn) (<-chan core.StreamDelta, error) {
	s.calls++
	s.lastTurns = turns

	if s.openErr != nil {
		return nil, s.openErr
	}

	ch := make(chan core.StreamDelta, len(s.deltas))
	for _, delta := range s.deltas {
		ch <- delta
	}
	close(ch)

	return ch, nil
}

type nopSink struct{}

func (nopSink) SaveLedger([]core.LedgerTurn, map[core.SourceID]int, int) error { return nil }
func (nopSink) SaveTranscript([]core.ChatMessage) error                        { return nil }

type engineFixture struct {
	engine     *Engine
	ledger     *ledger.Ledger
	transcript *ledger.Transcript
	streamer   *scriptedStreamer
}

func newEngineFixture(t *testing.T, pool SourcePool, streamer *scriptedStreamer) *engineFixture {
	t.Helper()

	lg := ledger.New()
	transcript := ledger.NewTranscript()
	engine := NewEngine(lg, transcript, pool, streamer, blockify.New(0), nopSink{}, time.Minute)

	return &engineFixture{engine: engine, ledger: lg, transcript: transcript, streamer: streamer}
}

func onePagePool() stubPool {
	return stubPool{sources: []*core.Source{{
		ID:    core.NewSourceID(),
		Name:  "a.pdf",
		Kind:  core.KindDocument,
		Pages: []core.Page{{Markdown: "hello from a.pdf"}},
	}}}
}

func drain(t *testing.T, updates <-chan Update) []Update {
	t.Helper()

	var out []Update
	for update := range updates {
		out = append(out, update)
	}
	return out
}

func TestEngine_SubmitAppendsUserAndPlaceholder(t *testing.T) {
	f := newEngineFixture(t, onePagePool(), &scriptedStreamer{})

	if err := f.engine.Submit("what is this?"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	messages := f.transcript.Messages()
	if len(messages) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(messages))
	}
	if messages[1].Content != ledger.Placeholder {
		t.Errorf("trailing message = %q, want placeholder", messages[1].Content)
	}

	// No model call and no ledger mutation yet.
	if f.streamer.calls != 0 {
		t.Error("submit must not call the model")
	}
	if f.ledger.Len() != 0 {
		t.Error("submit must not touch the ledger")
	}

	if err := f.engine.Submit("another"); err == nil {
		t.Error("second submit with a turn in flight should fail")
	}
}

func TestEngine_DriveStreamsAndCommitsOnce(t *testing.T) {
	streamer := &scriptedStreamer{deltas: []core.StreamDelta{
		{Text: "The answer"},
		{Text: " is 42."},
	}}
	f := newEngineFixture(t, onePagePool(), streamer)

	if err := f.engine.Submit("what is the answer?"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	updates, err := f.engine.Drive(context.Background())
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}
	got := drain(t, updates)

	if len(got) != 3 {
		t.Fatalf("updates = %d, want 2 streaming + 1 finalized", len(got))
	}
	if got[0].State != StateStreaming || got[0].Text != "The answer" {
		t.Errorf("first update = %+v", got[0])
	}
	if got[1].Text != "The answer is 42." {
		t.Errorf("second update = %+v", got[1])
	}
	if got[2].State != StateFinalized {
		t.Errorf("terminal update = %+v", got[2])
	}

	last, _ := f.transcript.Last()
	if last.Content != "The answer is 42." {
		t.Errorf("placeholder final content = %q", last.Content)
	}

	// Rebuilt ledger (system + source + marker) plus question and answer.
	turns := f.ledger.Turns()
	if len(turns) != 5 {
		t.Fatalf("ledger len = %d, want 5", len(turns))
	}
	question := turns[3].Content[0].Text
	if !strings.HasPrefix(question, "# User question:\n") || !strings.Contains(question, "what is the answer?") {
		t.Errorf("question turn = %q", question)
	}
	if turns[4].Role != core.RoleAssistant || turns[4].Content[0].Text != "The answer is 42." {
		t.Errorf("assistant turn = %+v", turns[4])
	}
}

func TestEngine_DriveSendsFullContentPlusTransientQuestion(t *testing.T) {
	streamer := &scriptedStreamer{deltas: []core.StreamDelta{{Text: "ok"}}}
	f := newEngineFixture(t, onePagePool(), streamer)

	if err := f.engine.Submit("q"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	updates, err := f.engine.Drive(context.Background())
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}
	drain(t, updates)

	// The model saw the rebuilt ledger plus one transient question turn,
	// which is one fewer than the committed ledger now holds.
	if len(streamer.lastTurns) != f.ledger.Len()-1 {
		t.Fatalf("model saw %d turns, ledger has %d", len(streamer.lastTurns), f.ledger.Len())
	}

	tail := streamer.lastTurns[len(streamer.lastTurns)-1]
	if tail.Role != core.RoleUser || !strings.HasPrefix(tail.Content[0].Text, "# User question:\n") {
		t.Errorf("transient tail turn = %+v", tail)
	}
}

func TestEngine_FailedDriveLeavesLedgerUnchanged(t *testing.T) {
	streamer := &scriptedStreamer{deltas: []core.StreamDelta{
		{Text: "partial"},
		{Err: errors.New("connection reset")},
	}}
	pool := onePagePool()
	f := newEngineFixture(t, pool, streamer)

	// Materialise the ledger up front so the failure comparison is exact.
	if _, err := f.ledger.RebuildFromSources(pool.Active(), blockify.New(0)); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	lenBefore := f.ledger.Len()

	if err := f.engine.Submit("q"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	updates, err := f.engine.Drive(context.Background())
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}
	got := drain(t, updates)

	terminal := got[len(got)-1]
	if terminal.State != StateFailed || !strings.Contains(terminal.Err, "connection reset") {
		t.Fatalf("terminal update = %+v", terminal)
	}

	if f.ledger.Len() != lenBefore {
		t.Errorf("ledger len = %d, want %d (unchanged)", f.ledger.Len(), lenBefore)
	}

	last, _ := f.transcript.Last()
	if !strings.Contains(last.Content, "Error generating response") {
		t.Errorf("placeholder after failure = %q", last.Content)
	}

	// A retried submit starts a clean cycle.
	if err := f.engine.Submit("again"); err != nil {
		t.Errorf("submit after failure should succeed: %v", err)
	}
}

func TestEngine_OpenFailureIsFailedState(t *testing.T) {
	streamer := &scriptedStreamer{openErr: errors.New("dial tcp: refused")}
	f := newEngineFixture(t, onePagePool(), streamer)

	if err := f.engine.Submit("q"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	updates, err := f.engine.Drive(context.Background())
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}
	got := drain(t, updates)

	if len(got) != 1 || got[0].State != StateFailed {
		t.Fatalf("updates = %+v, want single failed", got)
	}
	if f.engine.State() != StateFailed {
		t.Errorf("state = %s, want failed", f.engine.State())
	}
}

func TestEngine_EmptyPoolSkipsModel(t *testing.T) {
	streamer := &scriptedStreamer{}
	f := newEngineFixture(t, stubPool{}, streamer)

	if err := f.engine.Submit("anyone there?"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	updates, err := f.engine.Drive(context.Background())
	if err != nil {
		t.Fatalf("drive failed: %v", err)
	}
	got := drain(t, updates)

	if len(got) != 1 || got[0].State != StateFinalized || got[0].Text != NoSourcesMessage {
		t.Fatalf("updates = %+v", got)
	}
	if streamer.calls != 0 {
		t.Error("model called despite empty source pool")
	}
	if f.ledger.Len() != 0 {
		t.Error("ledger mutated despite empty source pool")
	}

	last, _ := f.transcript.Last()
	if last.Content != NoSourcesMessage {
		t.Errorf("placeholder = %q", last.Content)
	}
}

func TestEngine_DriveWithoutSubmit(t *testing.T) {
	f := newEngineFixture(t, onePagePool(), &scriptedStreamer{})

	if _, err := f.engine.Drive(context.Background()); err == nil {
		t.Fatal("drive without a submitted turn should fail")
	}
}
