// Package turn drives one streamed model turn. The visible placeholder is in
// place before any network I/O happens, every increment splices into it, and
// the ledger is appended exactly once, at stream completion, so a failed or
// abandoned turn can never leave a half-written ledger turn behind.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/erg0nix/samtale/internal/blockify"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/ledger"
)

type State string

const (
	StateIdle               State = "idle"
	StateAwaitingFirstToken State = "awaiting_first_token"
	StateStreaming          State = "streaming"
	StateFinalized          State = "finalized"
	StateFailed             State = "failed"
)

// NoSourcesMessage replaces the placeholder when a turn is submitted with an
// empty source pool; the model is never called.
const NoSourcesMessage = "Please add a document or video first."

// ChatStreamer is the streaming chat-completion collaborator.
type ChatStreamer interface {
	StreamChat(ctx context.Context, turns []core.LedgerTurn) (<-chan core.StreamDelta, error)
}

// SourcePool exposes the active sources for ledger construction.
type SourcePool interface {
	Active() []*core.Source
}

// Sink mirrors transcript and ledger state; failures are logged, not fatal.
type Sink interface {
	SaveLedger(turns []core.LedgerTurn, positions map[core.SourceID]int, nextReservation int) error
	SaveTranscript(messages []core.ChatMessage) error
}

// Update is one observable step of a driven turn.
type Update struct {
	State State
	Text  string
	Err   string
}

// Engine is the per-conversation turn state machine. At most one turn is in
// flight at a time.
type Engine struct {
	mu      sync.Mutex
	state   State
	pending string
	driving bool

	ledger     *ledger.Ledger
	transcript *ledger.Transcript
	pool       SourcePool
	streamer   ChatStreamer
	builder    blockify.Builder
	sink       Sink
	timeout    time.Duration
}

func NewEngine(lg *ledger.Ledger, transcript *ledger.Transcript, pool SourcePool, streamer ChatStreamer, builder blockify.Builder, sink Sink, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Engine{
		state:      StateIdle,
		ledger:     lg,
		transcript: transcript,
		pool:       pool,
		streamer:   streamer,
		builder:    builder,
		sink:       sink,
		timeout:    timeout,
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Submit appends the user message and the assistant placeholder to the
// visible transcript and persists, synchronously and without any model call.
// A finished or failed prior turn is implicitly reset; a turn still in
// flight is an error.
func (e *Engine) Submit(userText string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateFinalized || e.state == StateFailed {
		e.state = StateIdle
	}

	if e.state != StateIdle {
		return fmt.Errorf("submit: turn already in flight (state %s)", e.state)
	}

	e.pending = userText
	e.transcript.AppendUser(userText)
	e.transcript.AppendPlaceholder()

	if err := e.sink.SaveTranscript(e.transcript.Messages()); err != nil {
		slog.Warn("persist transcript failed", "error", err)
	}

	e.state = StateAwaitingFirstToken

	return nil
}

// Drive opens the streamed model call for the submitted turn and returns the
// channel of observable updates. The channel closes after the terminal
// update. Cancelling ctx abandons the turn: the placeholder keeps whatever
// partial text was last spliced and the ledger is untouched.
func (e *Engine) Drive(ctx context.Context) (<-chan Update, error) {
	e.mu.Lock()
	if e.state != StateAwaitingFirstToken || e.driving {
		e.mu.Unlock()
		return nil, fmt.Errorf("drive: no submitted turn (state %s)", e.state)
	}
	e.driving = true
	question := e.pending
	e.mu.Unlock()

	updates := make(chan Update, 32)
	go e.drive(ctx, question, updates)

	return updates, nil
}

func (e *Engine) drive(ctx context.Context, question string, updates chan<- Update) {
	defer close(updates)

	if len(e.pool.Active()) == 0 {
		e.transcript.SetLast(NoSourcesMessage)
		if err := e.sink.SaveTranscript(e.transcript.Messages()); err != nil {
			slog.Warn("persist transcript failed", "error", err)
		}
		e.setState(StateFinalized)
		updates <- Update{State: StateFinalized, Text: NoSourcesMessage}
		return
	}

	if e.ledger.Len() == 0 {
		if _, err := e.ledger.RebuildFromSources(e.pool.Active(), e.builder); err != nil {
			e.fail(err, updates)
			return
		}
	}

	questionText := "# User question:\n" + question
	questionBlock := core.ContentBlock{core.TextSegment(questionText)}
	questionDisplay := core.ContentBlock{core.TextSegment(e.builder.Truncate(questionText))}

	callTurns := append(e.ledger.Turns(), core.LedgerTurn{
		Role:    core.RoleUser,
		Content: questionBlock,
		Display: questionDisplay,
	})

	ledgerLenBefore := e.ledger.Len()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	deltas, err := e.streamer.StreamChat(ctx, callTurns)
	if err != nil {
		e.fail(&core.StreamError{Err: err}, updates)
		return
	}

	var answer strings.Builder
	first := true

	for delta := range deltas {
		if delta.Err != nil {
			e.fail(&core.StreamError{Err: delta.Err}, updates)
			return
		}

		answer.WriteString(delta.Text)
		e.transcript.SetLast(answer.String())

		if first {
			e.setState(StateStreaming)
			first = false
		}

		updates <- Update{State: StateStreaming, Text: answer.String()}
	}

	if ctx.Err() != nil {
		e.fail(&core.StreamError{Err: ctx.Err()}, updates)
		return
	}

	finished := answer.String()

	// The commit point: the question and the finished answer become ledger
	// turns together, exactly once.
	if e.ledger.Len() != ledgerLenBefore {
		slog.Error("ledger mutated during stream", "before", ledgerLenBefore, "after", e.ledger.Len())
	}
	e.ledger.Append(core.RoleUser, questionBlock, questionDisplay)
	e.ledger.Append(core.RoleAssistant,
		core.ContentBlock{core.TextSegment(finished)},
		core.ContentBlock{core.TextSegment(e.builder.Truncate(finished))},
	)

	if err := e.sink.SaveLedger(e.ledger.Turns(), e.ledger.Positions(), e.ledger.NextReservation()); err != nil {
		slog.Warn("persist ledger failed", "error", err)
	}
	if err := e.sink.SaveTranscript(e.transcript.Messages()); err != nil {
		slog.Warn("persist transcript failed", "error", err)
	}

	e.setState(StateFinalized)
	updates <- Update{State: StateFinalized, Text: finished}
}

// fail surfaces a readable message in place of the assistant response and
// leaves the ledger exactly as it was before the drive started. An abandoned
// turn (context cancelled by the caller) keeps its partial text instead.
func (e *Engine) fail(err error, updates chan<- Update) {
	if !errors.Is(err, context.Canceled) {
		e.transcript.SetLast("Error generating response: " + err.Error())
	}

	if persistErr := e.sink.SaveTranscript(e.transcript.Messages()); persistErr != nil {
		slog.Warn("persist transcript failed", "error", persistErr)
	}

	slog.Warn("turn failed", "error", err)
	e.setState(StateFailed)
	updates <- Update{State: StateFailed, Err: err.Error()}
}

func (e *Engine) setState(state State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = state
	if state == StateFinalized || state == StateFailed {
		e.driving = false
	}
}
