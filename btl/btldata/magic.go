// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"fmt"
	"io"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl/btldata/header"
)

// Magic is the magic bytes which appear at the beginning of every bottle.
const Magic = "\xf0\x9f\x8d\xbc"

// Version is the version of the bottle format.
const Version byte = 0

const (
	// PreambleSize is the size of the fixed prefix of every bottle.
	PreambleSize = 8

	// MaxHeaderSize is the largest encoded header which fits in a preamble.
	MaxHeaderSize = 4095
)

// Type identifies what the streams in a bottle mean. The format reserves the
// values 0-15.
type Type byte

// These are the known bottle types.
const (
	TypeFile       Type = 0
	TypeHashed     Type = 1
	TypeEncrypted  Type = 3
	TypeCompressed Type = 4

	// Reserved for tests.
	TypeTest  Type = 10
	TypeTest2 Type = 11
)

// Valid returns nil iff the Type is known.
func (t Type) Valid() error {
	switch t {
	case TypeFile, TypeHashed, TypeEncrypted, TypeCompressed, TypeTest, TypeTest2:
		return nil
	}
	return errors.Annotate(ErrUnknownType, "0x%x", byte(t)).Err()
}

func (t Type) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeHashed:
		return "hashed"
	case TypeEncrypted:
		return "encrypted"
	case TypeCompressed:
		return "compressed"
	case TypeTest:
		return "test"
	case TypeTest2:
		return "test2"
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// BuildPreamble returns the preamble for a bottle of type t with an encoded
// header of headerLen bytes.
func BuildPreamble(t Type, headerLen int) (ret [PreambleSize]byte, err error) {
	if err = t.Valid(); err != nil {
		return
	}
	if headerLen < 0 || headerLen > MaxHeaderSize {
		err = errors.Annotate(ErrHeaderTooLarge, "%d > %d", headerLen, MaxHeaderSize).Err()
		return
	}
	copy(ret[:], Magic)
	ret[4] = Version
	ret[5] = 0
	ret[6] = byte(t)<<4 | byte(headerLen>>8)&0x0f
	ret[7] = byte(headerLen)
	return
}

func checkMagic(buf []byte) error {
	if string(buf) != Magic {
		return errors.Annotate(ErrBadMagic, "got %q", buf).Err()
	}
	return nil
}

// ParsePreamble validates a preamble and returns the bottle type and the
// length of the header which follows it.
func ParsePreamble(buf []byte) (t Type, headerLen int, err error) {
	if len(buf) < PreambleSize {
		err = errors.Annotate(ErrTruncated, "preamble is %d bytes", len(buf)).Err()
		return
	}
	if err = checkMagic(buf[:4]); err != nil {
		return
	}
	if buf[4] != Version || buf[5] != 0 {
		err = errors.Annotate(ErrBadVersion, "%d, %d", buf[4], buf[5]).Err()
		return
	}
	t = Type(buf[6] >> 4)
	if err = t.Valid(); err != nil {
		return
	}
	headerLen = int(buf[6]&0x0f)<<8 | int(buf[7])
	return
}

func readPreamble(r io.Reader) (Type, int, error) {
	buf := make([]byte, PreambleSize)
	if err := readFull(r, buf[:4], "magic"); err != nil {
		return 0, 0, err
	}
	if err := checkMagic(buf[:4]); err != nil {
		return 0, 0, err
	}
	if err := readFull(r, buf[4:], "preamble"); err != nil {
		return 0, 0, err
	}
	return ParsePreamble(buf)
}

func readHeaderBody(r io.Reader, t Type, headerLen int) (*header.Header, error) {
	buf := make([]byte, headerLen)
	if err := readFull(r, buf, "header"); err != nil {
		return nil, err
	}
	h, err := header.Decode(buf)
	if err != nil {
		return nil, errors.Annotate(err, "decoding %s header", t).Err()
	}
	return h, nil
}

// ReadHeader reads a preamble and header from r, leaving r positioned at
// the first stream of the bottle.
//
// The magic is checked before anything past it is read.
func ReadHeader(r io.Reader) (Type, *header.Header, error) {
	t, headerLen, err := readPreamble(r)
	if err != nil {
		return 0, nil, err
	}
	h, err := readHeaderBody(r, t, headerLen)
	if err != nil {
		return 0, nil, err
	}
	return t, h, nil
}
