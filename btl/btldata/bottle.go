// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"fmt"
	"io"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl/btldata/header"
	"github.com/riannucci/fourbottle/btl/btldata/zint"
)

const (
	// MinBuffer is the smallest frame MakeBottle will emit, other than the
	// last frame of a stream.
	MinBuffer = 1024

	// DefaultChunkSize is the read size ReaderStream uses if none is given.
	DefaultChunkSize = 64 * 1024
)

// MakeBottle returns a Stream of a complete bottle: the preamble and
// header, each of streams framed in order, and the end-of-all-streams
// marker.
//
// Errors in t or h are returned immediately, before any bytes are
// produced.
func MakeBottle(t Type, h *header.Header, streams ...Stream) (Stream, error) {
	hdr := h.Encode()
	preamble, err := BuildPreamble(t, len(hdr))
	if err != nil {
		return nil, err
	}

	parts := make([]Stream, 0, len(streams)+2)
	parts = append(parts, StreamOf(Chunk{preamble[:], hdr}))
	for _, s := range streams {
		// prevent tiny frames by requiring at least MinBuffer per frame.
		parts = append(parts, FrameStream(Coalesce(s, MinBuffer)))
	}
	endOfAll, _ := zint.EncodeLength(zint.EndOfAllStreams)
	parts = append(parts, StreamOf(Chunk{endOfAll}))
	return Concat(parts...), nil
}

// State is the parse state of a Reader.
type State int

// These are the states a Reader moves through. Done and Failed are
// terminal.
const (
	AwaitingPreamble State = iota
	AwaitingHeaderBody
	AwaitingStreamOrEnd
	ReadingFrameLength
	ReadingFrameBody
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingPreamble:
		return "AwaitingPreamble"
	case AwaitingHeaderBody:
		return "AwaitingHeaderBody"
	case AwaitingStreamOrEnd:
		return "AwaitingStreamOrEnd"
	case ReadingFrameLength:
		return "ReadingFrameLength"
	case ReadingFrameBody:
		return "ReadingFrameBody"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reader reads one bottle.
//
// The header is parsed by Open. Each stream is then obtained in order with
// NextStream. Streams which are themselves bottles may be passed back to
// Open.
//
// Reader never reads past the end of the bottle, but it reads the
// underlying io.Reader a byte at a time while parsing lengths; wrap it in a
// bufio.Reader if that matters and nothing else needs the underlying reader
// afterwards.
type Reader struct {
	r *byteReader

	state State
	err   error

	typ    Type
	header *header.Header

	cur *StreamReader
}

// Open reads the preamble and header of a bottle from r.
func Open(r io.Reader) (*Reader, error) {
	ret := &Reader{r: &byteReader{Reader: r}}

	t, headerLen, err := readPreamble(ret.r)
	if err != nil {
		return nil, ret.fail(err)
	}
	ret.typ = t
	ret.state = AwaitingHeaderBody

	if ret.header, err = readHeaderBody(ret.r, t, headerLen); err != nil {
		return nil, ret.fail(err)
	}
	ret.state = AwaitingStreamOrEnd
	return ret, nil
}

func (b *Reader) fail(err error) error {
	if b.state != Failed {
		b.state = Failed
		b.err = err
	}
	return b.err
}

// Type returns the bottle type.
func (b *Reader) Type() Type { return b.typ }

// Header returns the decoded bottle header.
func (b *Reader) Header() *header.Header { return b.header }

// State returns the current parse state.
func (b *Reader) State() State { return b.state }

// Err returns the error which moved the Reader to Failed, if any.
func (b *Reader) Err() error { return b.err }

// NextStream returns a reader for the next stream in the bottle, or io.EOF
// if there are no more.
//
// Any unread part of the previous stream is discarded.
func (b *Reader) NextStream() (*StreamReader, error) {
	if b.cur != nil {
		if err := b.cur.drain(); err != nil {
			return nil, err
		}
		b.cur = nil
	}

	switch b.state {
	case Done:
		return nil, io.EOF
	case Failed:
		return nil, b.err
	case AwaitingStreamOrEnd:
	default:
		panic(fmt.Sprintf("impossible state %s", b.state))
	}

	c, err := b.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			err = errors.Annotate(ErrTruncated, "missing end of all streams").Err()
		}
		return nil, b.fail(err)
	}
	if c == 0xff {
		b.state = Done
		return nil, io.EOF
	}

	// c is the start of the first frame's length.
	b.cur = &StreamReader{b: b, havePending: true, pending: c}
	b.state = ReadingFrameLength
	return b.cur, nil
}

// ReadStreams reads every remaining stream of the bottle into memory.
func (b *Reader) ReadStreams() ([][]byte, error) {
	var ret [][]byte
	for {
		s, err := b.NextStream()
		if err == io.EOF {
			return ret, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(s)
		if err != nil {
			return nil, err
		}
		ret = append(ret, data)
	}
}
