// internal/kcs/progress.go
package kcs

import "time"

// Progress reports the state of a KCS write.
type Progress struct {
	// Phase is "writing" while chunks are pending and "complete" at the end.
	Phase string

	// Addr is the mailbox being written.
	Addr uint16

	// Chunk is the number of chunks written and verified so far.
	Chunk int

	// Chunks is the total number of chunks.
	Chunks int

	// Done is the number of bytes written so far.
	Done int

	// Total is the size of the blob.
	Total int

	// Percentage is the completion percentage (0.0 to 100.0).
	Percentage float64

	// Retries counts failed SetKcsSetup attempts so far.
	Retries int

	// Elapsed is the time since the transfer started.
	Elapsed time.Duration
}

// ProgressCallback receives transfer progress. It runs on the transfer
// goroutine and should return quickly.
type ProgressCallback func(Progress)

const (
	PhaseWriting  = "writing"
	PhaseComplete = "complete"
)
