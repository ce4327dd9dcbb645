package cram

import (
	"encoding/binary"
	"io"
)

// byteReader counts the bytes it has consumed.
type byteReader struct {
	r io.ByteReader
	n int64
}

func (b *byteReader) ReadByte() (byte, error) {
	c, err := b.r.ReadByte()
	if err == nil {
		b.n++
	}
	return c, err
}

func (b *byteReader) int32() (int32, error) {
	var buf [4]byte
	for i := range buf {
		c, err := b.ReadByte()
		if err != nil {
			return 0, err
		}
		buf[i] = c
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// itf8 reads a CRAM variable length 32-bit integer.
func (b *byteReader) itf8() (int32, error) {
	c, err := b.ReadByte()
	if err != nil {
		return 0, err
	}
	var extra int
	var v uint32
	switch {
	case c&0x80 == 0:
		return int32(c), nil
	case c&0xc0 == 0x80:
		extra, v = 1, uint32(c&0x3f)
	case c&0xe0 == 0xc0:
		extra, v = 2, uint32(c&0x1f)
	case c&0xf0 == 0xe0:
		extra, v = 3, uint32(c&0x0f)
	default:
		v = uint32(c & 0x0f)
		for i := 0; i < 3; i++ {
			d, err := b.ReadByte()
			if err != nil {
				return 0, err
			}
			v = v<<8 | uint32(d)
		}
		d, err := b.ReadByte()
		if err != nil {
			return 0, err
		}
		return int32(v<<4 | uint32(d&0x0f)), nil
	}
	for i := 0; i < extra; i++ {
		d, err := b.ReadByte()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(d)
	}
	return int32(v), nil
}

// ltf8 reads a CRAM variable length 64-bit integer.
func (b *byteReader) ltf8() (int64, error) {
	c, err := b.ReadByte()
	if err != nil {
		return 0, err
	}
	extra := 0
	for extra < 8 && c&(0x80>>uint(extra)) != 0 {
		extra++
	}
	var v uint64
	if extra < 7 {
		v = uint64(c & (0x7f >> uint(extra)))
	}
	for i := 0; i < extra; i++ {
		d, err := b.ReadByte()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint64(d)
	}
	return int64(v), nil
}
