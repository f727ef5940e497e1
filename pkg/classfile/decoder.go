package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// decoder reads big-endian class file structures from a byte slice and
// reports the offset of every short read.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) take(n int, what string) ([]byte, error) {
	if n < 0 || len(d.buf)-d.pos < n {
		return nil, fmt.Errorf("%s at offset %d: need %d bytes, have %d: %w", what, d.pos, n, len(d.buf)-d.pos, io.ErrUnexpectedEOF)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) u1(what string) (uint8, error) {
	b, err := d.take(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u2(what string) (uint16, error) {
	b, err := d.take(2, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u4(what string) (uint32, error) {
	b, err := d.take(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) u8(what string) (uint64, error) {
	b, err := d.take(8, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// bytes returns a copy of the next n bytes.
func (d *decoder) bytes(n int, what string) ([]byte, error) {
	b, err := d.take(n, what)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// u2s reads a u2 count followed by that many u2 values.
func (d *decoder) u2s(what string) ([]uint16, error) {
	n, err := d.u2(what + " count")
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		if out[i], err = d.u2(what); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *decoder) remaining() int { return len(d.buf) - d.pos }
