// Package snapshot durably mirrors the visible transcript and the ledger
// (full and display variants) after every mutation, for crash recovery and
// inspection. Writes are fire-and-forget relative to in-memory state: a
// failure is logged by the caller, never rolled back into a mutation.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/erg0nix/samtale/internal/core"
)

const (
	transcriptFile    = "transcript.json"
	ledgerFile        = "ledger.json"
	ledgerDisplayFile = "ledger_display.json"
	sourcesFile       = "sources.json"
	poolFile          = "pool.json"
)

type ledgerTurnJSON struct {
	Role    core.Role         `json:"role"`
	Content core.ContentBlock `json:"content"`
}

type ledgerJSON struct {
	Turns           []ledgerTurnJSON      `json:"turns"`
	Positions       map[core.SourceID]int `json:"positions"`
	NextReservation int                   `json:"next_reservation"`
}

type displayJSON struct {
	Turns []ledgerTurnJSON `json:"turns"`
}

// Writer persists conversation artifacts under a data directory.
type Writer struct {
	baseDir string
	mu      sync.Mutex
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Initialize writes every artifact as empty; called at startup and on reset.
func (w *Writer) Initialize() error {
	if err := w.SaveTranscript(nil); err != nil {
		return err
	}
	if err := w.SaveLedger(nil, nil, 0); err != nil {
		return err
	}
	return w.SaveSources(nil)
}

// SaveTranscript rewrites the visible transcript artifact.
func (w *Writer) SaveTranscript(messages []core.ChatMessage) error {
	if messages == nil {
		messages = []core.ChatMessage{}
	}
	return w.writeJSON(transcriptFile, messages)
}

// SaveLedger rewrites both ledger artifacts: the full payload with the
// position index and reservation counter, and the display variant.
func (w *Writer) SaveLedger(turns []core.LedgerTurn, positions map[core.SourceID]int, nextReservation int) error {
	if positions == nil {
		positions = map[core.SourceID]int{}
	}

	full := ledgerJSON{
		Turns:           make([]ledgerTurnJSON, 0, len(turns)),
		Positions:       positions,
		NextReservation: nextReservation,
	}
	display := displayJSON{Turns: make([]ledgerTurnJSON, 0, len(turns))}

	for _, turn := range turns {
		full.Turns = append(full.Turns, ledgerTurnJSON{Role: turn.Role, Content: turn.Content})
		display.Turns = append(display.Turns, ledgerTurnJSON{Role: turn.Role, Content: turn.Display})
	}

	if err := w.writeJSON(ledgerFile, full); err != nil {
		return err
	}

	return w.writeJSON(ledgerDisplayFile, display)
}

// LoadLedger restores the turn sequence, position index, and reservation
// counter from the persisted artifacts. Display payloads are re-paired from
// the display artifact by index; if it is missing or out of step, the full
// content doubles as display.
func (w *Writer) LoadLedger() ([]core.LedgerTurn, map[core.SourceID]int, int, error) {
	var full ledgerJSON
	if err := w.readJSON(ledgerFile, &full); err != nil {
		return nil, nil, 0, err
	}

	var display displayJSON
	displayOK := w.readJSON(ledgerDisplayFile, &display) == nil && len(display.Turns) == len(full.Turns)

	turns := make([]core.LedgerTurn, 0, len(full.Turns))
	for i, turn := range full.Turns {
		out := core.LedgerTurn{Role: turn.Role, Content: turn.Content, Display: turn.Content}
		if displayOK {
			out.Display = display.Turns[i].Content
		}
		turns = append(turns, out)
	}

	positions := full.Positions
	if positions == nil {
		positions = map[core.SourceID]int{}
	}

	return turns, positions, full.NextReservation, nil
}

// LoadTranscript restores the visible transcript.
func (w *Writer) LoadTranscript() ([]core.ChatMessage, error) {
	var messages []core.ChatMessage
	if err := w.readJSON(transcriptFile, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (w *Writer) writeJSON(name string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(w.baseDir, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

func (w *Writer) readJSON(name string, out any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(w.baseDir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	return nil
}
