package wire

import "encoding/binary"

// Writer accumulates a canonical serialization. The zero value is ready to
// use.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity pre-reserved.
func NewWriter(capacityHint int) *Writer {
	return &Writer{buf: make([]byte, 0, capacityHint)}
}

// Bytes returns the accumulated serialization. The returned slice aliases
// the Writer's internal buffer and must not be mutated by the caller.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteFixed appends b verbatim (used for opaque hash fields).
func (w *Writer) WriteFixed(b []byte) { w.buf = append(w.buf, b...) }

// WriteU8 appends a single byte.
func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

// WriteU16 appends a little-endian uint16.
func (w *Writer) WriteU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU32 appends a little-endian uint32.
func (w *Writer) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteU64 appends a little-endian uint64.
func (w *Writer) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// WriteCompactSize appends v using the minimal CompactSize encoding.
func (w *Writer) WriteCompactSize(v uint64) {
	switch {
	case v < 0xfd:
		w.WriteU8(uint8(v))
	case v <= 0xffff:
		w.WriteU8(0xfd)
		w.WriteU16(uint16(v))
	case v <= 0xffff_ffff:
		w.WriteU8(0xfe)
		w.WriteU32(uint32(v))
	default:
		w.WriteU8(0xff)
		w.WriteU64(v)
	}
}

// WriteVarBytes writes a CompactSize length prefix followed by b.
func (w *Writer) WriteVarBytes(b []byte) {
	w.WriteCompactSize(uint64(len(b)))
	w.WriteFixed(b)
}
