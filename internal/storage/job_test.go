package storage

import (
	"context"
	"testing"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/halsten/gorrent/internal/bufferpool"
)

func TestJobRunWritesOnSuccessfulVerify(t *testing.T) {
	data := []byte("0123456789ABCDEF")
	info := buildV1Info(t, 16, data)

	s := newMemStorage()
	w, _, err := Open(info, s)
	require.NoError(t, err)
	defer w.Close()

	pool := bufferpool.New(16)
	buf := pool.Get(16)
	copy(buf.Data, data)

	job := NewJob(0, buf)
	sem := semaphore.NewWeighted(1)
	resultC := make(chan *Job, 1)
	job.Run(context.Background(), w, sem, metrics.NilMeter{}, metrics.NilMeter{}, resultC)

	got := <-resultC
	require.True(t, got.OK)
	require.NoError(t, got.Error)

	readBack := make([]byte, 16)
	require.NoError(t, w.ReadPiece(0, readBack))
	require.Equal(t, data, readBack)
}

func TestJobRunDoesNotWriteOnFailedVerify(t *testing.T) {
	data := []byte("0123456789ABCDEF")
	info := buildV1Info(t, 16, data)

	s := newMemStorage()
	w, _, err := Open(info, s)
	require.NoError(t, err)
	defer w.Close()

	pool := bufferpool.New(16)
	buf := pool.Get(16)
	copy(buf.Data, []byte("XXXXXXXXXXXXXXXX"))

	job := NewJob(0, buf)
	sem := semaphore.NewWeighted(1)
	resultC := make(chan *Job, 1)
	job.Run(context.Background(), w, sem, metrics.NilMeter{}, metrics.NilMeter{}, resultC)

	got := <-resultC
	require.False(t, got.OK)

	readBack := make([]byte, 16)
	require.NoError(t, w.ReadPiece(0, readBack))
	require.Equal(t, make([]byte, 16), readBack) // untouched: still zero
}
