package blobclient

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
)

// TotalUnknown is reported as TotalBytes when the backend did not declare a
// content length.
const TotalUnknown int64 = -1

// Progress describes the state of a transfer after a chunk has moved.
type Progress struct {
	LoadedBytes int64
	TotalBytes  int64 // TotalUnknown when the backend did not report a length
	Percent     int   // 0..100, or -1 when the total is unknown
}

// ProgressFunc receives a Progress event per transferred chunk.
type ProgressFunc func(Progress)

func newProgress(loaded, total int64) Progress {
	p := Progress{LoadedBytes: loaded, TotalBytes: total, Percent: -1}
	if total < 0 {
		p.TotalBytes = TotalUnknown
		return p
	}
	if total == 0 {
		p.Percent = 100
		return p
	}
	pct := int(math.Round(float64(loaded) / float64(total) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.Percent = pct
	return p
}

const drainChunkSize = 32 * 1024

// drain copies r into w one chunk at a time, emitting a progress event after
// each chunk. A zero-byte source still produces one event so callers always
// observe a terminal 100% for known totals. Returns the number of bytes moved.
func drain(r io.Reader, w io.Writer, total int64, cb ProgressFunc) (int64, error) {
	chunk := make([]byte, drainChunkSize)
	var loaded int64
	for {
		n, readErr := r.Read(chunk)
		if n > 0 {
			if _, err := w.Write(chunk[:n]); err != nil {
				return loaded, err
			}
			loaded += int64(n)
			if cb != nil {
				cb(newProgress(loaded, total))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return loaded, readErr
		}
	}
	if loaded == 0 && cb != nil {
		cb(newProgress(0, total))
	}
	return loaded, nil
}

// accumulate drains r fully into memory.
func accumulate(r io.Reader, total int64, cb ProgressFunc) ([]byte, error) {
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	if _, err := drain(r, &buf, total, cb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drainToFile streams r into the file at path, creating parent directories
// as needed. The destination is opened only after the parent directory is
// confirmed to exist, and is closed on every exit path.
func drainToFile(path string, r io.Reader, total int64, cb ProgressFunc) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := drain(r, f, total, cb); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
