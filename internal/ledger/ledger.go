// Package ledger holds the model-facing transcript. The ledger is
// append-mostly: source blocks and finished chat turns are pushed to the
// tail, and a removed source's turn is overwritten in place with a tombstone
// so every other turn keeps its index.
package ledger

import (
	"fmt"
	"sync"

	"github.com/erg0nix/samtale/internal/core"
)

// SystemPrompt opens every rebuilt ledger.
const SystemPrompt = "You are an assistant that helps users understand multiple document and video contents. " +
	"The documents have been processed with OCR and contain both text and images. " +
	"The videos have been analysed into timestamped transcript and description segments."

const endMarker = "--------------------SOURCES END--------------------\n" +
	"--------------------------------------------------\n\n\n"

// BlockBuilder produces the full and display content blocks for one source.
type BlockBuilder interface {
	Build(src *core.Source) (core.ContentBlock, core.ContentBlock, error)
}

// Ledger is the ordered sequence of model-facing turns plus the bookkeeping
// that locates each source's block inside it. All mutation is serialised by
// a single mutex.
type Ledger struct {
	mu              sync.Mutex
	turns           []core.LedgerTurn
	positions       map[core.SourceID]int
	nextReservation int
}

func New() *Ledger {
	return &Ledger{positions: make(map[core.SourceID]int)}
}

// Len returns the number of turns.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.turns)
}

// Append pushes a turn to the tail and returns its index.
func (l *Ledger) Append(role core.Role, content, display core.ContentBlock) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.appendLocked(role, content, display)
}

// AppendForSource pushes a source's block turn to the tail and records its
// position in the index.
func (l *Ledger) AppendForSource(id core.SourceID, content, display core.ContentBlock) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := l.appendLocked(core.RoleUser, content, display)
	l.positions[id] = index

	return index
}

func (l *Ledger) appendLocked(role core.Role, content, display core.ContentBlock) int {
	l.turns = append(l.turns, core.LedgerTurn{Role: role, Content: content, Display: display})
	return len(l.turns) - 1
}

// ReservePosition records a future index for a source ingested before any
// turn has been constructed, and advances the reservation counter. The next
// rebuild honours reservations in source order.
func (l *Ledger) ReservePosition(id core.SourceID) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := l.nextReservation
	l.positions[id] = index
	l.nextReservation++

	return index
}

// ReplaceAt overwrites the turn at index in place; used for tombstoning.
func (l *Ledger) ReplaceAt(index int, content, display core.ContentBlock) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.turns) {
		return fmt.Errorf("replace at %d of %d: %w", index, len(l.turns), core.ErrIndexOutOfRange)
	}

	l.turns[index] = core.LedgerTurn{Role: l.turns[index].Role, Content: content, Display: display}

	return nil
}

// PositionOf returns the recorded ledger index for a source.
func (l *Ledger) PositionOf(id core.SourceID) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	index, ok := l.positions[id]
	return index, ok
}

// DropPosition removes a source from the index without touching its turn.
func (l *Ledger) DropPosition(id core.SourceID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.positions, id)
}

// Positions returns a copy of the source index.
func (l *Ledger) Positions() map[core.SourceID]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[core.SourceID]int, len(l.positions))
	for id, index := range l.positions {
		out[id] = index
	}

	return out
}

// RebuildFromSources reconstructs the ledger wholesale: system turn, one turn
// per active source in order, then an end-of-sources marker. It returns the
// fresh position index. Prior reservations are superseded by the actual
// indices assigned here.
func (l *Ledger) RebuildFromSources(sources []*core.Source, builder BlockBuilder) (map[core.SourceID]int, error) {
	blocks := make([]core.ContentBlock, 0, len(sources))
	displays := make([]core.ContentBlock, 0, len(sources))

	for _, src := range sources {
		content, display, err := builder.Build(src)
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, content)
		displays = append(displays, display)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	systemBlock := core.ContentBlock{core.TextSegment(SystemPrompt)}

	l.turns = []core.LedgerTurn{{Role: core.RoleSystem, Content: systemBlock, Display: systemBlock}}
	l.positions = make(map[core.SourceID]int, len(sources))

	for i, src := range sources {
		l.turns = append(l.turns, core.LedgerTurn{Role: core.RoleUser, Content: blocks[i], Display: displays[i]})
		l.positions[src.ID] = len(l.turns) - 1
	}

	markerBlock := core.ContentBlock{core.TextSegment(endMarker)}
	l.turns = append(l.turns, core.LedgerTurn{Role: core.RoleUser, Content: markerBlock, Display: markerBlock})

	l.nextReservation = len(l.turns)

	out := make(map[core.SourceID]int, len(l.positions))
	for id, index := range l.positions {
		out[id] = index
	}

	return out, nil
}

// Turns returns a copy of the full model-facing turn sequence.
func (l *Ledger) Turns() []core.LedgerTurn {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.LedgerTurn, len(l.turns))
	copy(out, l.turns)

	return out
}

// Restore replaces the ledger contents wholesale; used when reloading
// persisted state.
func (l *Ledger) Restore(turns []core.LedgerTurn, positions map[core.SourceID]int, nextReservation int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = make([]core.LedgerTurn, len(turns))
	copy(l.turns, turns)

	l.positions = make(map[core.SourceID]int, len(positions))
	for id, index := range positions {
		l.positions[id] = index
	}

	l.nextReservation = nextReservation
}

// NextReservation exposes the reservation counter for persistence.
func (l *Ledger) NextReservation() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.nextReservation
}

// Clear drops all turns and positions and resets the reservation counter.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.turns = nil
	l.positions = make(map[core.SourceID]int)
	l.nextReservation = 0
}
