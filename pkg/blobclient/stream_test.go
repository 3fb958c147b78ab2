package blobclient

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulateKnownTotal(t *testing.T) {
	payload := make([]byte, 3*drainChunkSize+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	var events []Progress
	got, err := accumulate(bytes.NewReader(payload), int64(len(payload)), func(p Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NotEmpty(t, events)

	var prev int64
	for _, p := range events {
		assert.Greater(t, p.LoadedBytes, prev, "loaded bytes must grow")
		assert.GreaterOrEqual(t, p.Percent, 0)
		assert.LessOrEqual(t, p.Percent, 100)
		assert.Equal(t, int64(len(payload)), p.TotalBytes)
		prev = p.LoadedBytes
	}
	last := events[len(events)-1]
	assert.Equal(t, int64(len(payload)), last.LoadedBytes)
	assert.Equal(t, 100, last.Percent)
}

func TestAccumulateUnknownTotal(t *testing.T) {
	payload := []byte("length not declared")

	var events []Progress
	got, err := accumulate(bytes.NewReader(payload), TotalUnknown, func(p Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NotEmpty(t, events)
	for _, p := range events {
		assert.Equal(t, TotalUnknown, p.TotalBytes)
		assert.Equal(t, -1, p.Percent)
	}
}

func TestAccumulateEmptySource(t *testing.T) {
	var events []Progress
	got, err := accumulate(bytes.NewReader(nil), 0, func(p Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)
	assert.Empty(t, got)

	// A zero-byte source still reports a terminal 100%.
	require.Len(t, events, 1)
	assert.Equal(t, int64(0), events[0].LoadedBytes)
	assert.Equal(t, 100, events[0].Percent)
}

func TestAccumulateNoCallback(t *testing.T) {
	got, err := accumulate(bytes.NewReader([]byte("plain")), 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), got)
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

func TestAccumulateReadError(t *testing.T) {
	cause := errors.New("stream reset")
	_, err := accumulate(&failingReader{data: []byte("partial"), err: cause}, 100, nil)
	assert.ErrorIs(t, err, cause)
}

func TestDrainToFileCreatesParents(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a", "b", "c.txt")

	var events []Progress
	err := drainToFile(dest, bytes.NewReader([]byte("written")), 7, func(p Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "written", string(data))
	require.NotEmpty(t, events)
	assert.Equal(t, 100, events[len(events)-1].Percent)
}

func TestDrainToFileReadError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "partial.bin")
	cause := errors.New("stream reset")

	err := drainToFile(dest, &failingReader{data: []byte("partial"), err: cause}, 100, nil)
	assert.ErrorIs(t, err, cause)
}

func TestNewProgress(t *testing.T) {
	tests := []struct {
		name        string
		loaded      int64
		total       int64
		wantPercent int
	}{
		{"zero of zero", 0, 0, 100},
		{"half", 50, 100, 50},
		{"complete", 100, 100, 100},
		{"rounded up", 2, 3, 67},
		{"unknown total", 10, TotalUnknown, -1},
		{"overshoot clamps", 150, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgress(tt.loaded, tt.total)
			assert.Equal(t, tt.wantPercent, p.Percent)
			assert.Equal(t, tt.loaded, p.LoadedBytes)
		})
	}
}

func TestDrainWritesPerChunk(t *testing.T) {
	// Two full chunks must reach the sink as two writes, not one.
	payload := make([]byte, 2*drainChunkSize)
	writes := 0
	w := countingWriter{n: &writes}

	loaded, err := drain(bytes.NewReader(payload), w, int64(len(payload)), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), loaded)
	assert.Equal(t, 2, writes)
}

type countingWriter struct {
	n *int
}

func (c countingWriter) Write(p []byte) (int, error) {
	*c.n++
	return len(p), nil
}
