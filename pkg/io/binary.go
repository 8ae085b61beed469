// Package io provides buffered binary reader/writer helpers used
// throughout the distribution core to decode and encode wire structures
// without threading an error return through every call site.
package io

import (
	"bytes"
	"encoding/binary"
	"io"
)

// BinReader wraps an io.Reader, accumulating the first error encountered
// so that a long sequence of ReadXxx calls can be checked once at the end.
type BinReader struct {
	R   io.Reader
	Err error
}

// NewBinReaderFromBuf creates a BinReader over an in-memory buffer.
func NewBinReaderFromBuf(b []byte) *BinReader {
	return &BinReader{R: bytes.NewReader(b)}
}

// ReadB reads a single byte.
func (r *BinReader) ReadB() byte {
	if r.Err != nil {
		return 0
	}
	var b [1]byte
	_, r.Err = io.ReadFull(r.R, b[:])
	return b[0]
}

// ReadBool reads a single byte and interprets it as a boolean.
func (r *BinReader) ReadBool() bool {
	return r.ReadB() != 0
}

// ReadU16BE reads a big-endian uint16.
func (r *BinReader) ReadU16BE() uint16 {
	if r.Err != nil {
		return 0
	}
	var b [2]byte
	if _, err := io.ReadFull(r.R, b[:]); err != nil {
		r.Err = err
		return 0
	}
	return binary.BigEndian.Uint16(b[:])
}

// ReadU32BE reads a big-endian uint32.
func (r *BinReader) ReadU32BE() uint32 {
	if r.Err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(r.R, b[:]); err != nil {
		r.Err = err
		return 0
	}
	return binary.BigEndian.Uint32(b[:])
}

// ReadBytes reads exactly len(b) bytes into b.
func (r *BinReader) ReadBytes(b []byte) {
	if r.Err != nil {
		return
	}
	_, r.Err = io.ReadFull(r.R, b)
}

// ReadN reads and returns exactly n bytes.
func (r *BinReader) ReadN(n int) []byte {
	b := make([]byte, n)
	r.ReadBytes(b)
	return b
}

// ReadRest reads and returns all remaining bytes.
func (r *BinReader) ReadRest() []byte {
	if r.Err != nil {
		return nil
	}
	b, err := io.ReadAll(r.R)
	if err != nil {
		r.Err = err
		return nil
	}
	return b
}

// BinWriter wraps an io.Writer, accumulating the first error encountered.
type BinWriter struct {
	W   io.Writer
	Err error
}

// NewBufBinWriter creates a BinWriter over a fresh in-memory buffer.
func NewBufBinWriter() *BufBinWriter {
	buf := new(bytes.Buffer)
	return &BufBinWriter{BinWriter: &BinWriter{W: buf}, buf: buf}
}

// BufBinWriter is a BinWriter backed by a bytes.Buffer, exposing Bytes().
type BufBinWriter struct {
	*BinWriter
	buf *bytes.Buffer
}

// Bytes returns the accumulated bytes. Callers should check Err first.
func (w *BufBinWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// Reset clears the underlying buffer and error for reuse.
func (w *BufBinWriter) Reset() {
	w.buf.Reset()
	w.Err = nil
}

// WriteB writes a single byte.
func (w *BinWriter) WriteB(b byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.W.Write([]byte{b})
}

// WriteBool writes a single byte, 1 for true and 0 for false.
func (w *BinWriter) WriteBool(v bool) {
	if v {
		w.WriteB(1)
	} else {
		w.WriteB(0)
	}
}

// WriteU16BE writes a big-endian uint16.
func (w *BinWriter) WriteU16BE(v uint16) {
	if w.Err != nil {
		return
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, w.Err = w.W.Write(b[:])
}

// WriteU32BE writes a big-endian uint32.
func (w *BinWriter) WriteU32BE(v uint32) {
	if w.Err != nil {
		return
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, w.Err = w.W.Write(b[:])
}

// WriteBytes writes b verbatim, with no length prefix.
func (w *BinWriter) WriteBytes(b []byte) {
	if w.Err != nil {
		return
	}
	_, w.Err = w.W.Write(b)
}
