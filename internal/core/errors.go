package core

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange signals a ledger bookkeeping invariant violation. It
// should never occur in correct code and tests treat it as fatal.
var ErrIndexOutOfRange = errors.New("ledger index out of range")

// BlockifyError reports malformed structured content discovered while turning
// a source into ledger segments. Treated as an ingestion failure: the caller
// must not register a partially built block.
type BlockifyError struct {
	SourceName string
	Reason     string
}

func (e *BlockifyError) Error() string {
	return fmt.Sprintf("blockify %s: %s", e.SourceName, e.Reason)
}

// IngestError reports a per-file ingestion failure (extraction or description
// service). It never aborts sibling ingestions in the same batch.
type IngestError struct {
	FileName string
	Err      error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.FileName, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// StreamError reports a model call failure mid-turn. The ledger is left
// unmutated; the visible placeholder carries a readable message instead.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("chat stream: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
