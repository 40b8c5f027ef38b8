package core

import "github.com/google/uuid"

type SourceID string

type RequestID string

// NewSourceID returns an identifier that is unique for the process lifetime
// and never reused, even after the source is removed.
func NewSourceID() SourceID {
	return SourceID("src_" + uuid.NewString())
}

func NewRequestID() RequestID {
	return RequestID("req_" + uuid.NewString())
}
