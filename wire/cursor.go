// Package wire implements the canonical, deterministic binary encoding
// shared by blocks, transactions, headers, and wallet records (spec §4.1).
// Fixed-width integers are little-endian; hashes are opaque fixed-size byte
// arrays; variable-length fields are length-prefixed with a compact integer
// encoded in 1, 3, 5, or 9 bytes depending on magnitude, identical to the
// Bitcoin-family VarInt.
package wire

import (
	"encoding/binary"
	"fmt"
)

// ErrMalformedInput is wrapped by every decode failure: premature EOF, a
// length prefix exceeding the remaining input, or a non-minimal CompactSize
// encoding.
var ErrMalformedInput = fmt.Errorf("wire: malformed input")

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, reason)
}

// Cursor reads sequentially through a byte slice, tracking position.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor wraps b for sequential reads starting at offset 0.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Done reports whether every byte has been consumed.
func (c *Cursor) Done() bool { return c.off >= len(c.buf) }

func (c *Cursor) readExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, malformed("negative length")
	}
	if c.off+n > len(c.buf) {
		return nil, malformed("unexpected EOF")
	}
	v := c.buf[c.off : c.off+n]
	c.off += n
	return v, nil
}

// ReadBytes reads and copies exactly n bytes.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	v, err := c.readExact(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), v...), nil
}

// ReadFixed reads exactly len(out) bytes into out.
func (c *Cursor) ReadFixed(out []byte) error {
	v, err := c.readExact(len(out))
	if err != nil {
		return err
	}
	copy(out, v)
	return nil
}

// ReadU8 reads a single byte.
func (c *Cursor) ReadU8() (uint8, error) {
	v, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	v, err := c.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	v, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

// ReadU64 reads a little-endian uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	v, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

// ReadCompactSize reads the Bitcoin-family VarInt: values below 0xfd encode
// as a single byte; 0xfd/0xfe/0xff prefix a 2/4/8-byte little-endian value.
// Non-minimal encodings (e.g. a value < 0xfd encoded with the 0xfd prefix)
// are rejected as malformed.
func (c *Cursor) ReadCompactSize() (uint64, error) {
	tag, err := c.ReadU8()
	if err != nil {
		return 0, err
	}
	switch {
	case tag < 0xfd:
		return uint64(tag), nil
	case tag == 0xfd:
		v, err := c.ReadU16()
		if err != nil {
			return 0, err
		}
		if v < 0xfd {
			return 0, malformed("non-minimal CompactSize (0xfd)")
		}
		return uint64(v), nil
	case tag == 0xfe:
		v, err := c.ReadU32()
		if err != nil {
			return 0, err
		}
		if v <= 0xffff {
			return 0, malformed("non-minimal CompactSize (0xfe)")
		}
		return uint64(v), nil
	default: // 0xff
		v, err := c.ReadU64()
		if err != nil {
			return 0, err
		}
		if v <= 0xffff_ffff {
			return 0, malformed("non-minimal CompactSize (0xff)")
		}
		return v, nil
	}
}

// ReadCompactLen reads a CompactSize and validates it fits in an int and
// does not exceed maxLen (a caller-supplied consensus cap), returning the
// converted length.
func (c *Cursor) ReadCompactLen(maxLen uint64) (int, error) {
	n, err := c.ReadCompactSize()
	if err != nil {
		return 0, err
	}
	if n > maxLen {
		return 0, malformed("length exceeds maximum")
	}
	return int(n), nil
}
