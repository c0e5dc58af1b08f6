package core

import (
	"io"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirebot/internal/identity"
)

// StreamStatus is the transfer state of a Stream.
type StreamStatus string

const (
	// StreamPending is the initial status, waiting for accept or reject.
	StreamPending StreamStatus = "pending"
	// StreamInProgress means the transfer was accepted and bytes are flowing.
	StreamInProgress StreamStatus = "in_progress"
	// StreamSuccess means the transfer finished normally.
	StreamSuccess StreamStatus = "success"
	// StreamPaused is available to backends; no core transition enters or leaves it.
	StreamPaused StreamStatus = "paused"
	// StreamError means the transfer was aborted.
	StreamError StreamStatus = "error"
	// StreamRejected means the transfer was refused before it started.
	StreamRejected StreamStatus = "rejected"
)

// Terminal reports whether no further transition other than Fail applies.
func (s StreamStatus) Terminal() bool {
	switch s {
	case StreamSuccess, StreamError, StreamRejected:
		return true
	default:
		return false
	}
}

const (
	// SizeUnknown is the declared size of a stream whose length is not known.
	SizeUnknown int64 = -1
	// DefaultReason is recorded when Fail is called without a reason.
	DefaultReason = "unknown"
)

// Stream is an incoming or outgoing binary transfer. It reads through to its
// source and tracks the transfer status. A Stream has a single owner and is
// not safe for concurrent mutation.
type Stream struct {
	id          string
	identifier  identity.Identifier
	source      io.Reader
	name        string
	size        int64
	streamType  string
	status      StreamStatus
	reason      string
	transferred int64
}

// NewStream builds a pending stream over source. Use SizeUnknown when the
// size is not declared.
func NewStream(id identity.Identifier, source io.Reader, name string, size int64, streamType string) *Stream {
	return &Stream{
		id:         uuid.NewString(),
		identifier: id,
		source:     source,
		name:       name,
		size:       size,
		streamType: streamType,
		status:     StreamPending,
		reason:     DefaultReason,
	}
}

// ID uniquely identifies this transfer.
func (s *Stream) ID() string {
	return s.id
}

// Identifier is the sender of an incoming stream or the recipient of an outgoing one.
func (s *Stream) Identifier() identity.Identifier {
	return s.identifier
}

// Name is the stream or file name, if any. Do not use it as a path unchecked.
func (s *Stream) Name() string {
	return s.name
}

func (s *Stream) Size() int64 {
	return s.size
}

func (s *Stream) Transferred() int64 {
	return s.transferred
}

// StreamType is the mime type hint, if known.
func (s *Stream) StreamType() string {
	return s.streamType
}

func (s *Stream) Status() StreamStatus {
	return s.status
}

// Reason is the failure reason recorded by the last Fail.
func (s *Stream) Reason() string {
	return s.reason
}

// Read reads from the underlying source.
func (s *Stream) Read(p []byte) (int, error) {
	return s.source.Read(p)
}

// Accept marks a pending stream as in progress.
func (s *Stream) Accept() error {
	if s.status != StreamPending {
		return &StateError{Op: "accept", From: s.status, Want: StreamPending}
	}
	s.status = StreamInProgress
	return nil
}

// Reject refuses a pending stream.
func (s *Stream) Reject() error {
	if s.status != StreamPending {
		return &StateError{Op: "reject", From: s.status, Want: StreamPending}
	}
	s.status = StreamRejected
	return nil
}

// Success marks an in progress stream as finished.
func (s *Stream) Success() error {
	if s.status != StreamInProgress {
		return &StateError{Op: "success", From: s.status, Want: StreamInProgress}
	}
	s.status = StreamSuccess
	return nil
}

// Fail aborts the transfer from any status. An empty reason records DefaultReason.
func (s *Stream) Fail(reason string) {
	if reason == "" {
		reason = DefaultReason
	}
	s.status = StreamError
	s.reason = reason
}

// AckData records how many bytes have been transferred so far. It never changes the status.
func (s *Stream) AckData(length int64) {
	s.transferred = length
}

// Clone returns a new pending stream with the same metadata reading from source.
func (s *Stream) Clone(source io.Reader) *Stream {
	return NewStream(s.identifier, source, s.name, s.size, s.streamType)
}
