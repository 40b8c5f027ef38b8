// Package app wires the conversation services together and owns the
// whole-conversation operations that cut across them.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/erg0nix/samtale/internal/blockify"
	"github.com/erg0nix/samtale/internal/config"
	"github.com/erg0nix/samtale/internal/ledger"
	"github.com/erg0nix/samtale/internal/providers"
	"github.com/erg0nix/samtale/internal/snapshot"
	"github.com/erg0nix/samtale/internal/sources"
	"github.com/erg0nix/samtale/internal/turn"
)

// Services is one wired conversation: the ledger, the visible transcript, the
// source pool, the turn engine, and the collaborators behind them.
type Services struct {
	Config     config.Config
	Builder    blockify.Builder
	Ledger     *ledger.Ledger
	Transcript *ledger.Transcript
	Snapshot   *snapshot.Writer
	Sources    *sources.Manager
	Engine     *turn.Engine
	Speech     *providers.SpeechClient
}

func NewServices(cfg config.Config) *Services {
	var payloadLogger *providers.PayloadLogger
	if cfg.Debug.LogRequests || cfg.Debug.LogResponses {
		payloadLogger = providers.NewPayloadLogger(
			cfg.Debug.LogDirectory,
			cfg.Debug.LogRequests,
			cfg.Debug.LogResponses,
			slog.Default(),
		)
	}

	builder := blockify.New(cfg.PreviewLimit)
	writer := snapshot.NewWriter(filepath.Join(cfg.DataDir, "state"))
	conversationLedger := ledger.New()
	transcript := ledger.NewTranscript()

	manager := sources.NewManager(
		conversationLedger,
		transcript,
		builder,
		providers.NewDocumentExtractor(cfg.OCR, payloadLogger),
		providers.NewVideoDescriber(cfg.Video, payloadLogger),
		writer,
	)

	engine := turn.NewEngine(
		conversationLedger,
		transcript,
		manager,
		providers.NewChatClient(cfg.Chat, payloadLogger),
		builder,
		writer,
		cfg.Chat.Timeout(),
	)

	return &Services{
		Config:     cfg,
		Builder:    builder,
		Ledger:     conversationLedger,
		Transcript: transcript,
		Snapshot:   writer,
		Sources:    manager,
		Engine:     engine,
		Speech:     providers.NewSpeechClient(cfg.Speech),
	}
}

// Restore reloads the previous session's transcript, ledger, and source pool
// from disk. Missing artifacts are a fresh start, not an error. The ledger is
// restored before the pool so stale position entries can be pruned against
// the restored sources; if only the pool survives, the next driven turn
// rebuilds the ledger from it.
func (s *Services) Restore() {
	if messages, err := s.Snapshot.LoadTranscript(); err == nil {
		s.Transcript.Restore(messages)
	}

	if turns, positions, nextReservation, err := s.Snapshot.LoadLedger(); err == nil {
		s.Ledger.Restore(turns, positions, nextReservation)
	}

	if sources, err := s.Snapshot.LoadSources(); err == nil {
		s.Sources.Restore(sources)
	}
}

// ClearChat drops the conversation while keeping the source pool. The ledger
// empties entirely; the next driven turn rebuilds it from the live sources.
func (s *Services) ClearChat() error {
	s.Ledger.Clear()
	s.Transcript.Clear()

	if err := s.Snapshot.SaveLedger(s.Ledger.Turns(), s.Ledger.Positions(), s.Ledger.NextReservation()); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}
	if err := s.Snapshot.SaveTranscript(s.Transcript.Messages()); err != nil {
		return fmt.Errorf("clear chat: %w", err)
	}

	slog.Info("chat cleared", "sources_kept", len(s.Sources.Active()))

	return nil
}

// ResetAll drops the conversation and the source pool both, leaving the
// persisted artifacts empty.
func (s *Services) ResetAll() error {
	s.Sources.Clear()
	s.Ledger.Clear()
	s.Transcript.Clear()

	if err := s.Snapshot.Initialize(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}

	slog.Info("conversation reset")

	return nil
}
