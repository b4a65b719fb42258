// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package zint implements the two integer encodings used by 4bottle.
//
// Packed ints are little-endian with their byte count carried out-of-band
// (e.g. by a header field length).
//
// Lengths are self-describing and favor powers of two:
//
//	00000000 - end of stream
//	0xxxxxxx - 1 thru 127
//	10xxxxxx - (+ 1 byte, LSB) up to 2^13
//	110xxxxx - (+ 2 bytes, LSB) up to 2^21
//	1110xxxx - (+ 3 bytes, LSB) up to 2^28
//	1111xxxx - 2^(7+x): any power-of-2 block size from 2^7 to 2^21
//	11111111 - end of all streams
package zint

import (
	"io"
	"math/bits"

	"go.chromium.org/luci/common/errors"
)

const (
	// EndOfStream is the length which terminates a single frame sequence.
	EndOfStream = 0

	// EndOfAllStreams is the length which terminates a bottle.
	EndOfAllStreams = -1

	// MaxLength is the largest length which can be encoded.
	MaxLength = 1<<28 - 1

	// MaxPackedLen is the largest number of bytes a packed int can occupy.
	MaxPackedLen = 8

	// MaxLengthLen is the largest number of bytes a length can occupy.
	MaxLengthLen = 4

	maxPowerOfTwo = 1 << 21
)

var (
	// ErrLengthOverflow is returned when encoding a length outside of
	// [0, MaxLength].
	ErrLengthOverflow = errors.New("length overflow")

	// ErrShortBuffer is returned when decoding a length from a buffer which
	// doesn't hold all of its bytes.
	ErrShortBuffer = errors.New("short buffer")

	// ErrZeroLength is returned when decoding a multi-byte encoding of zero.
	// Only the single byte 00 means EndOfStream.
	ErrZeroLength = errors.New("multi-byte zero length")
)

// AppendPackedInt appends the packed encoding of n to buf.
func AppendPackedInt(buf []byte, n uint64) []byte {
	for n > 255 {
		buf = append(buf, byte(n))
		n >>= 8
	}
	return append(buf, byte(n))
}

// EncodePackedInt returns the packed encoding of n.
func EncodePackedInt(n uint64) []byte {
	return AppendPackedInt(make([]byte, 0, MaxPackedLen), n)
}

// DecodePackedInt decodes a packed int which occupies all of buf. Only the
// first MaxPackedLen bytes are considered.
func DecodePackedInt(buf []byte) (ret uint64) {
	if len(buf) > MaxPackedLen {
		buf = buf[:MaxPackedLen]
	}
	for i, b := range buf {
		ret |= uint64(b) << (8 * uint(i))
	}
	return
}

// AppendLength appends the length encoding of n to buf.
//
// n may be EndOfStream or EndOfAllStreams.
func AppendLength(buf []byte, n int) ([]byte, error) {
	switch {
	case n == EndOfAllStreams:
		return append(buf, 0xff), nil

	case n < 0:
		return buf, errors.Annotate(ErrLengthOverflow, "negative length %d", n).Err()

	case n < 128:
		return append(buf, byte(n)), nil

	case n <= maxPowerOfTwo && n&(n-1) == 0:
		return append(buf, 0xf0+byte(bits.TrailingZeros(uint(n))-7)), nil

	case n < 1<<13:
		return append(buf, 0x80|byte(n&0x3f), byte(n>>6)), nil

	case n < 1<<21:
		return append(buf, 0xc0|byte(n&0x1f), byte(n>>5), byte(n>>13)), nil

	case n <= MaxLength:
		return append(buf, 0xe0|byte(n&0x0f), byte(n>>4), byte(n>>12), byte(n>>20)), nil
	}
	return buf, errors.Annotate(ErrLengthOverflow, "%d > %d", n, MaxLength).Err()
}

// EncodeLength returns the length encoding of n.
func EncodeLength(n int) ([]byte, error) {
	return AppendLength(make([]byte, 0, MaxLengthLen), n)
}

// LengthLength returns the total number of bytes in a length encoding which
// begins with the byte b.
func LengthLength(b byte) int {
	switch {
	case b&0xf0 == 0xf0, b&0x80 == 0:
		return 1
	case b&0xc0 == 0x80:
		return 2
	case b&0xe0 == 0xc0:
		return 3
	}
	return 4
}

// DecodeLength decodes the length at the start of buf.
//
// It returns EndOfStream, EndOfAllStreams, or the decoded length. A
// multi-byte encoding of zero is ErrZeroLength.
func DecodeLength(buf []byte) (int, error) {
	if len(buf) == 0 || len(buf) < LengthLength(buf[0]) {
		return 0, errors.Annotate(ErrShortBuffer, "decoding length from %d bytes", len(buf)).Err()
	}

	var n int
	b := buf[0]
	switch {
	case b == 0xff:
		return EndOfAllStreams, nil
	case b&0x80 == 0:
		return int(b), nil
	case b&0xf0 == 0xf0:
		return 1 << (7 + b&0x0f), nil
	case b&0xc0 == 0x80:
		n = int(b&0x3f) | int(buf[1])<<6
	case b&0xe0 == 0xc0:
		n = int(b&0x1f) | int(buf[1])<<5 | int(buf[2])<<13
	default:
		n = int(b&0x0f) | int(buf[1])<<4 | int(buf[2])<<12 | int(buf[3])<<20
	}
	if n == 0 {
		return 0, errors.Annotate(ErrZeroLength, "%x", buf[:LengthLength(b)]).Err()
	}
	return n, nil
}

// ReadLength reads exactly one length encoding from r.
//
// If r runs out partway through the encoding, io.ErrUnexpectedEOF is
// returned. If r is empty, io.EOF is returned.
func ReadLength(r io.ByteReader) (int, error) {
	var buf [MaxLengthLen]byte
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	buf[0] = b
	n := LengthLength(b)
	for i := 1; i < n; i++ {
		if buf[i], err = r.ReadByte(); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
	}
	return DecodeLength(buf[:n])
}
