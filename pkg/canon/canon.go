// Copyright 2025 BPI Labs
//
// Package canon implements the deterministic, self-describing binary
// encoding used for every persisted or transmitted record in BPI/BPCI:
// fixed-width little-endian integers, no floating point (fixed-point
// amounts carry an explicit scale), and maps serialized by sorted key
// so two encoders never disagree on byte layout.
package canon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// Writer accumulates canonically-encoded fields in a fixed order.
// Callers pick the field order; Writer guarantees each field's bytes
// are deterministic for a given value.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty canonical writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated canonical encoding.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// U8 appends a single byte.
func (w *Writer) U8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

// U32 appends a fixed-width little-endian uint32.
func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

// U64 appends a fixed-width little-endian uint64.
func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
	return w
}

// I64 appends a fixed-width little-endian int64.
func (w *Writer) I64(v int64) *Writer {
	return w.U64(uint64(v))
}

// Bytes32 appends exactly 32 raw bytes; the [32]byte parameter type
// rules out a short or over-long value at compile time.
func (w *Writer) Bytes32(v [32]byte) *Writer {
	w.buf.Write(v[:])
	return w
}

// Blob appends a length-prefixed byte slice (length as u32, then raw
// bytes) so variable-length fields never create ambiguous boundaries.
func (w *Writer) Blob(v []byte) *Writer {
	w.U32(uint32(len(v)))
	w.buf.Write(v)
	return w
}

// Str appends a length-prefixed UTF-8 string.
func (w *Writer) Str(v string) *Writer {
	return w.Blob([]byte(v))
}

// Fixed appends a fixed-point amount as a raw integer mantissa plus its
// declared decimal scale; amounts are never encoded as floats.
func (w *Writer) Fixed(mantissa int64, scale uint8) *Writer {
	w.I64(mantissa)
	return w.U8(scale)
}

// SortedStringMap appends a map of string->[]byte sorted by key so
// encoders never disagree about map iteration order.
func (w *Writer) SortedStringMap(m map[string][]byte) *Writer {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w.U32(uint32(len(keys)))
	for _, k := range keys {
		w.Str(k)
		w.Blob(m[k])
	}
	return w
}

// Amount is a fixed-point value with a declared scale. There is no
// floating-point amount type anywhere in the system; every quantity
// that needs canonical encoding carries an explicit mantissa and scale.
type Amount struct {
	Mantissa int64
	Scale    uint8
}

// Float64 returns the amount as a float64 for display/arithmetic that
// does not need to be canonically encoded.
func (a Amount) Float64() float64 {
	d := 1.0
	for i := uint8(0); i < a.Scale; i++ {
		d *= 10
	}
	return float64(a.Mantissa) / d
}

// AmountFromFloat64 quantizes a float64 to a fixed-point Amount at the
// given scale. Used only at system boundaries converting external
// (floating point) oracle/config input into canonical form.
func AmountFromFloat64(v float64, scale uint8) Amount {
	m := 1.0
	for i := uint8(0); i < scale; i++ {
		m *= 10
	}
	return Amount{Mantissa: int64(v * m), Scale: scale}
}

func (a Amount) String() string {
	return fmt.Sprintf("%d[e-%d]", a.Mantissa, a.Scale)
}
