package storage

import (
	"context"

	"github.com/halsten/gorrent/internal/bufferpool"
	metrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/semaphore"
)

// Job is one piece's verify-then-write work item, generalizing the
// teacher's piecewriter.PieceWriter across v1/v2/hybrid verify modes.
// Run is meant to execute on its own goroutine; the caller bounds how
// many run concurrently with sem.
type Job struct {
	Index  uint32
	Buffer *bufferpool.Buffer

	OK    bool
	Error error
}

// NewJob returns a Job for piece index backed by buf, which Run
// releases exactly once regardless of outcome.
func NewJob(index uint32, buf *bufferpool.Buffer) *Job {
	return &Job{Index: index, Buffer: buf}
}

// Run verifies the job's buffer against w, writes it through on
// success, and delivers the result on resultC. It always releases
// Buffer before returning, and never writes a piece it failed to
// verify (failed pieces are reported via OK=false so the caller can
// reset the piece to MISSING and debit the contributing peer).
func (j *Job) Run(ctx context.Context, w *Writer, sem *semaphore.Weighted, writesPerSecond, writeBytesPerSecond metrics.Meter, resultC chan *Job) {
	defer j.Buffer.Release()

	j.OK, j.Error = w.Verify(j.Index, j.Buffer.Data)
	if j.OK {
		writesPerSecond.Mark(1)
		writeBytesPerSecond.Mark(int64(len(j.Buffer.Data)))
		if err := sem.Acquire(ctx, 1); err != nil {
			j.Error = err
			j.OK = false
		} else {
			j.Error = w.WritePiece(j.Index, j.Buffer.Data)
			sem.Release(1)
		}
	}

	select {
	case resultC <- j:
	case <-ctx.Done():
	}
}
