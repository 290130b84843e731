package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// TracePose is one agent's pose within a trace frame.
type TracePose struct {
	Serial int32   `json:"serial"`
	State  string  `json:"state"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Dir    float64 `json:"dir"`
}

// TraceFrame is one sampled tick of the pose trace.
type TraceFrame struct {
	Tick   int64       `json:"tick"`
	Time   float64     `json:"time"`
	Agents []TracePose `json:"agents"`
}

// TraceWriter appends zstd-compressed JSONL frames to a trace file.
type TraceWriter struct {
	every int64

	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewTraceWriter opens a trace file for writing. every controls sampling:
// a frame is recorded when tick%every == 0 (every < 1 records all ticks).
func NewTraceWriter(path string, every int64) (*TraceWriter, error) {
	if every < 1 {
		every = 1
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating trace dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &TraceWriter{
		every: every,
		f:     f,
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 128*1024),
	}, nil
}

// ShouldSample reports whether the given tick falls on the sampling stride.
func (tw *TraceWriter) ShouldSample(tick int64) bool {
	if tw == nil {
		return false
	}
	return tick%tw.every == 0
}

// WriteFrame appends one frame as a JSON line.
func (tw *TraceWriter) WriteFrame(frame TraceFrame) error {
	if tw == nil {
		return nil
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if _, err := tw.w.Write(b); err != nil {
		return err
	}
	return tw.w.WriteByte('\n')
}

// Close flushes buffered frames and closes the file.
func (tw *TraceWriter) Close() error {
	if tw == nil {
		return nil
	}
	var firstErr error
	if tw.w != nil {
		if err := tw.w.Flush(); err != nil {
			firstErr = err
		}
		tw.w = nil
	}
	if tw.enc != nil {
		if err := tw.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		tw.enc = nil
	}
	if tw.f != nil {
		if err := tw.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		tw.f = nil
	}
	return firstErr
}

// TraceReader iterates frames from a compressed trace file.
type TraceReader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner

	unmarshalErr error
}

// OpenTrace opens a trace file for reading.
func OpenTrace(path string) (*TraceReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace: %w", err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &TraceReader{f: f, dec: dec, sc: sc}, nil
}

// Next reads the next frame. Returns false at end of file; check Err after.
func (tr *TraceReader) Next(frame *TraceFrame) bool {
	if !tr.sc.Scan() {
		return false
	}
	if err := json.Unmarshal(tr.sc.Bytes(), frame); err != nil {
		tr.unmarshalErr = err
		return false
	}
	return true
}

// Err returns the first error hit while reading, if any.
func (tr *TraceReader) Err() error {
	if tr.unmarshalErr != nil {
		return tr.unmarshalErr
	}
	return tr.sc.Err()
}

// Close releases the underlying decoder and file.
func (tr *TraceReader) Close() error {
	tr.dec.Close()
	return tr.f.Close()
}
