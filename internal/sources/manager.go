// Package sources reconciles the desired set of active documents and videos
// against the context ledger: additions are blockified and appended at the
// tail, removals are tombstoned in place so no other source's ledger index
// ever moves.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/erg0nix/samtale/internal/blockify"
	"github.com/erg0nix/samtale/internal/core"
	"github.com/erg0nix/samtale/internal/ledger"
)

// Upload names one desired source. Path is set for local files, URL for
// YouTube videos; both are empty for sources that are already active and
// merely restated in the desired set.
type Upload struct {
	Name string
	Kind core.SourceKind
	Path string
	URL  string
}

// BatchResult reports a reconcile batch per file: each entry succeeds or
// fails independently, never an all-or-nothing rollback.
type BatchResult struct {
	Added   []string
	Removed []string
	Failed  []string
}

func (r BatchResult) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Failed) == 0
}

// Extractor is the OCR/page-extraction collaborator.
type Extractor interface {
	Extract(ctx context.Context, fileBytes []byte, fileName string) ([]core.Page, error)
}

// MediaRef locates one video for the description collaborator.
type MediaRef struct {
	Name string
	Path string
	URL  string
}

// Describer is the video-understanding collaborator.
type Describer interface {
	Describe(ctx context.Context, ref MediaRef) ([]core.VideoSegment, error)
}

// Sink mirrors state after every mutation; failures are logged, never fatal.
type Sink interface {
	SaveLedger(turns []core.LedgerTurn, positions map[core.SourceID]int, nextReservation int) error
	SaveTranscript(messages []core.ChatMessage) error
	SaveSources(sources []*core.Source) error
}

// Manager owns the active source set. One reconcile runs at a time;
// ingestion (the extraction and description calls) happens concurrently
// before the serialised mutation step.
type Manager struct {
	reconcileMu sync.Mutex

	mu      sync.Mutex
	sources map[core.SourceID]*core.Source
	order   []core.SourceID

	ledger     *ledger.Ledger
	transcript *ledger.Transcript
	builder    blockify.Builder
	extract    Extractor
	describe   Describer
	sink       Sink
}

func NewManager(lg *ledger.Ledger, transcript *ledger.Transcript, builder blockify.Builder, extract Extractor, describe Describer, sink Sink) *Manager {
	return &Manager{
		sources:    make(map[core.SourceID]*core.Source),
		ledger:     lg,
		transcript: transcript,
		builder:    builder,
		extract:    extract,
		describe:   describe,
		sink:       sink,
	}
}

// Active returns the active sources in upload order.
func (m *Manager) Active() []*core.Source {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.activeLocked()
}

func (m *Manager) activeLocked() []*core.Source {
	out := make([]*core.Source, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sources[id])
	}
	return out
}

// Add reconciles with a desired set of current actives plus the given
// uploads.
func (m *Manager) Add(ctx context.Context, uploads ...Upload) BatchResult {
	desired := m.desired()
	desired = append(desired, uploads...)
	return m.Reconcile(ctx, desired)
}

// Remove reconciles with a desired set of current actives minus the given
// display names.
func (m *Manager) Remove(ctx context.Context, names ...string) BatchResult {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}

	var desired []Upload
	for _, upload := range m.desired() {
		if !drop[upload.Name] {
			desired = append(desired, upload)
		}
	}

	return m.Reconcile(ctx, desired)
}

func (m *Manager) desired() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Upload, 0, len(m.order))
	for _, id := range m.order {
		src := m.sources[id]
		out = append(out, Upload{Name: src.Name, Kind: src.Kind, URL: src.URL})
	}

	return out
}

// Reconcile brings the active set in line with the desired one. Removals are
// applied against the ledger first, then additions are appended, so an
// addition never observes a stale tombstone slot as its insertion target.
func (m *Manager) Reconcile(ctx context.Context, desired []Upload) BatchResult {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	var result BatchResult

	desiredNames := make(map[string]bool, len(desired))
	for _, upload := range desired {
		desiredNames[kindedName(upload.Kind, upload.Name)] = true
	}

	removals := m.findRemovals(desiredNames)
	additions := m.findAdditions(desired)

	ingested := m.ingestAll(ctx, additions)

	m.mu.Lock()

	for _, id := range removals {
		if name := m.removeLocked(id); name != "" {
			result.Removed = append(result.Removed, name)
		}
	}

	for i, upload := range additions {
		outcome := ingested[i]
		if outcome.err != nil {
			slog.Warn("ingestion failed", "file", upload.Name, "error", outcome.err)
			result.Failed = append(result.Failed, upload.Name)
			continue
		}

		if err := m.registerLocked(outcome.source); err != nil {
			slog.Warn("blockify failed", "file", upload.Name, "error", err)
			result.Failed = append(result.Failed, upload.Name)
			continue
		}

		result.Added = append(result.Added, upload.Name)
	}

	active := m.activeLocked()
	m.mu.Unlock()

	if !result.Empty() {
		m.appendStatus(result, len(active))
		m.persist(active)
	}

	return result
}

type ingestOutcome struct {
	source *core.Source
	err    error
}

// ingestAll runs the extraction/description calls for a batch concurrently
// and merges results by batch index only after every launched call settles.
func (m *Manager) ingestAll(ctx context.Context, additions []Upload) []ingestOutcome {
	outcomes := make([]ingestOutcome, len(additions))

	var wg sync.WaitGroup
	for i, upload := range additions {
		wg.Add(1)
		go func(i int, upload Upload) {
			defer wg.Done()
			outcomes[i] = m.ingestOne(ctx, upload)
		}(i, upload)
	}
	wg.Wait()

	return outcomes
}

func (m *Manager) ingestOne(ctx context.Context, upload Upload) ingestOutcome {
	switch upload.Kind {
	case core.KindDocument:
		fileBytes, err := os.ReadFile(upload.Path)
		if err != nil {
			return ingestOutcome{err: &core.IngestError{FileName: upload.Name, Err: err}}
		}

		pages, err := m.extract.Extract(ctx, fileBytes, upload.Name)
		if err != nil {
			return ingestOutcome{err: &core.IngestError{FileName: upload.Name, Err: err}}
		}

		return ingestOutcome{source: &core.Source{
			ID:    core.NewSourceID(),
			Name:  upload.Name,
			Kind:  core.KindDocument,
			Pages: pages,
		}}

	case core.KindVideo:
		segments, err := m.describe.Describe(ctx, MediaRef{Name: upload.Name, Path: upload.Path, URL: upload.URL})
		if err != nil {
			return ingestOutcome{err: &core.IngestError{FileName: upload.Name, Err: err}}
		}

		return ingestOutcome{source: &core.Source{
			ID:       core.NewSourceID(),
			Name:     upload.Name,
			Kind:     core.KindVideo,
			URL:      upload.URL,
			Segments: segments,
		}}

	default:
		return ingestOutcome{err: &core.IngestError{
			FileName: upload.Name,
			Err:      fmt.Errorf("unknown source kind %q", upload.Kind),
		}}
	}
}

func (m *Manager) findRemovals(desiredNames map[string]bool) []core.SourceID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removals []core.SourceID
	for _, id := range m.order {
		src := m.sources[id]
		if !desiredNames[kindedName(src.Kind, src.Name)] {
			removals = append(removals, id)
		}
	}

	return removals
}

func (m *Manager) findAdditions(desired []Upload) []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()

	activeNames := make(map[string]bool, len(m.order))
	for _, id := range m.order {
		src := m.sources[id]
		activeNames[kindedName(src.Kind, src.Name)] = true
	}

	var additions []Upload
	seen := make(map[string]bool)
	for _, upload := range desired {
		key := kindedName(upload.Kind, upload.Name)
		if activeNames[key] || seen[key] {
			continue
		}
		seen[key] = true
		additions = append(additions, upload)
	}

	return additions
}

// registerLocked blockifies a freshly ingested source and records it. Ordinal
// is its 0-based rank among active sources of its kind.
func (m *Manager) registerLocked(src *core.Source) error {
	ordinal := 0
	for _, id := range m.order {
		if m.sources[id].Kind == src.Kind {
			ordinal++
		}
	}
	src.Ordinal = ordinal

	content, display, err := m.builder.Build(src)
	if err != nil {
		return err
	}

	// The first source seeds the ledger with its opening system turn, so a
	// block's index is always its final ledger position from the start.
	if m.ledger.Len() == 0 {
		system := core.ContentBlock{core.TextSegment(ledger.SystemPrompt)}
		m.ledger.Append(core.RoleSystem, system, system)
	}
	m.ledger.AppendForSource(src.ID, content, display)

	m.sources[src.ID] = src
	m.order = append(m.order, src.ID)

	return nil
}

// removeLocked tombstones the source's ledger turn in place, appends the
// removal notice, and renumbers remaining same-kind ordinals. Renumbering
// never touches already-materialised ledger content. Returns the removed
// source's display name, empty if the id is not active.
func (m *Manager) removeLocked(id core.SourceID) string {
	src, ok := m.sources[id]
	if !ok {
		return ""
	}

	if position, ok := m.ledger.PositionOf(id); ok && m.ledger.Len() > 0 {
		tombstone := removalNotice(src)
		if err := m.ledger.ReplaceAt(position, tombstone, tombstone); err != nil {
			slog.Error("tombstone failed", "source", src.Name, "position", position, "error", err)
		} else {
			notice := removalNoticeTurn(src)
			m.ledger.Append(core.RoleSystem, notice, notice)
		}
	}
	m.ledger.DropPosition(id)

	delete(m.sources, id)
	for i, orderedID := range m.order {
		if orderedID == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	ordinal := 0
	for _, orderedID := range m.order {
		if m.sources[orderedID].Kind == src.Kind {
			m.sources[orderedID].Ordinal = ordinal
			ordinal++
		}
	}

	slog.Info("removed source", "name", src.Name, "kind", src.Kind)

	return src.Name
}

// Restore repopulates the active pool from persisted sources, preserving
// their order and ordinals, and drops any restored ledger position that no
// longer belongs to an active source. Such stale entries would otherwise
// survive restarts forever: removals only ever act on active sources.
func (m *Manager) Restore(sources []*core.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources = make(map[core.SourceID]*core.Source, len(sources))
	m.order = make([]core.SourceID, 0, len(sources))

	for _, src := range sources {
		m.sources[src.ID] = src
		m.order = append(m.order, src.ID)
	}

	for id := range m.ledger.Positions() {
		if _, ok := m.sources[id]; !ok {
			m.ledger.DropPosition(id)
		}
	}
}

// appendStatus mirrors the batch outcome into the visible transcript.
func (m *Manager) appendStatus(result BatchResult, activeCount int) {
	var lines []string

	if len(result.Added) > 0 {
		lines = append(lines, fmt.Sprintf("Added %d: %s", len(result.Added), strings.Join(result.Added, ", ")))
	}
	if len(result.Removed) > 0 {
		lines = append(lines, fmt.Sprintf("Removed %d: %s", len(result.Removed), strings.Join(result.Removed, ", ")))
	}
	if len(result.Failed) > 0 {
		lines = append(lines, fmt.Sprintf("Failed to process: %s", strings.Join(result.Failed, ", ")))
	}

	lines = append(lines, fmt.Sprintf("Total sources: %d. Chat history preserved.", activeCount))
	m.transcript.AppendAssistant(strings.Join(lines, "\n"))
}

func (m *Manager) persist(active []*core.Source) {
	if err := m.sink.SaveLedger(m.ledger.Turns(), m.ledger.Positions(), m.ledger.NextReservation()); err != nil {
		slog.Warn("persist ledger failed", "error", err)
	}
	if err := m.sink.SaveTranscript(m.transcript.Messages()); err != nil {
		slog.Warn("persist transcript failed", "error", err)
	}
	if err := m.sink.SaveSources(active); err != nil {
		slog.Warn("persist sources failed", "error", err)
	}
}

func kindedName(kind core.SourceKind, name string) string {
	return string(kind) + "/" + name
}

func removalNotice(src *core.Source) core.ContentBlock {
	label, kind := "Document", "document"
	if src.Kind == core.KindVideo {
		label, kind = "Video", "video"
	}

	return core.ContentBlock{core.TextSegment(fmt.Sprintf(
		"%s name: %s.\nThis %s was deleted manually by the user and you no longer have access to its contents. "+
			"It was earlier uploaded by the user but now it is removed and no longer available. "+
			"It may still be referenced in the chat history before this point; those references remain "+
			"historically accurate but are not actionable.",
		label, src.Name, kind,
	))}
}

func removalNoticeTurn(src *core.Source) core.ContentBlock {
	kind := "document"
	if src.Kind == core.KindVideo {
		kind = "video"
	}

	return core.ContentBlock{core.TextSegment(fmt.Sprintf(
		"The %s %s was removed at this point in the conversation. References to it before this point "+
			"remain in the history, but its content is no longer part of the context.",
		kind, src.Name,
	))}
}

// SortedNames returns active display names, sorted, for CLI listings.
func (m *Manager) SortedNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.order))
	for _, id := range m.order {
		names = append(names, m.sources[id].Name)
	}
	sort.Strings(names)

	return names
}

// Clear drops every active source without ledger mutation; used by full
// reset, where the ledger is re-initialised separately.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources = make(map[core.SourceID]*core.Source)
	m.order = nil
}
