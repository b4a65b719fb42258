// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"context"
	"io"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl/btldata/zint"
)

type frameStream struct {
	src  Stream
	done bool
}

func (s *frameStream) Next(ctx context.Context) (Chunk, error) {
	if s.done {
		return nil, io.EOF
	}
	for {
		c, err := s.src.Next(ctx)
		if err == io.EOF {
			s.done = true
			return Chunk{{zint.EndOfStream}}, nil
		}
		if err != nil {
			return nil, err
		}
		size := c.Len()
		if size == 0 {
			// a zero length would read back as the end of the stream.
			continue
		}
		length, err := zint.EncodeLength(size)
		if err != nil {
			return nil, errors.Annotate(err, "framing %d byte chunk", size).Err()
		}
		ret := make(Chunk, 0, len(c)+1)
		return append(append(ret, length), c...), nil
	}
}

// FrameStream returns a Stream which prefixes every chunk of src with its
// length, and ends with the end-of-stream marker, suitable for embedding in
// a bottle. Each returned chunk is the source chunk with one new initial
// buffer.
//
// If you want to create large frames, Coalesce src first.
func FrameStream(src Stream) Stream {
	return &frameStream{src: src}
}

// StreamReader reads a single framed stream from a bottle.
//
// It's only valid until the next call to Reader.NextStream.
type StreamReader struct {
	b *Reader

	havePending bool
	pending     byte

	remaining int
	done      bool
}

var _ io.Reader = (*StreamReader)(nil)

func (s *StreamReader) check() error {
	if s.done {
		return io.EOF
	}
	if s.b.state == Failed {
		return s.b.err
	}
	return nil
}

// lengthByteReader feeds zint.ReadLength, serving the byte NextStream
// already consumed before any new ones.
type lengthByteReader struct{ s *StreamReader }

func (l lengthByteReader) ReadByte() (byte, error) {
	if l.s.havePending {
		l.s.havePending = false
		return l.s.pending, nil
	}
	return l.s.b.r.ReadByte()
}

// readLength moves from ReadingFrameLength to either ReadingFrameBody or,
// at the end of the stream, back to AwaitingStreamOrEnd.
func (s *StreamReader) readLength() error {
	n, err := zint.ReadLength(lengthByteReader{s})
	switch {
	case err == io.EOF, err == io.ErrUnexpectedEOF:
		return s.b.fail(errors.Annotate(ErrTruncated, "reading frame length").Err())
	case errors.Is(err, zint.ErrZeroLength):
		return s.b.fail(errors.Annotate(ErrMalformedFrame, "%s", err).Err())
	case err != nil:
		return s.b.fail(errors.Annotate(err, "reading frame length").Err())
	}

	switch n {
	case zint.EndOfStream:
		s.done = true
		s.b.state = AwaitingStreamOrEnd
		return io.EOF

	case zint.EndOfAllStreams:
		return s.b.fail(errors.Annotate(ErrMalformedFrame, "end of all streams inside a stream").Err())
	}

	s.remaining = n
	s.b.state = ReadingFrameBody
	return nil
}

func (s *StreamReader) consumed(n int) {
	if s.remaining -= n; s.remaining == 0 {
		s.b.state = ReadingFrameLength
	}
}

// Read implements io.Reader over the concatenated contents of the stream's
// frames.
func (s *StreamReader) Read(p []byte) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	for s.remaining == 0 {
		if err := s.readLength(); err != nil {
			return 0, err
		}
	}

	if len(p) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.b.r.Read(p)
	s.consumed(n)
	switch {
	case err == nil, err == io.EOF && s.remaining == 0:
		return n, nil
	case err == io.EOF:
		return n, s.b.fail(errors.Annotate(ErrTruncated, "frame ended %d bytes early", s.remaining).Err())
	}
	return n, s.b.fail(errors.Annotate(err, "reading frame").Err())
}

// NextFrame returns the rest of the current frame, reading the next frame's
// length first if necessary. Returns io.EOF at the end of the stream.
func (s *StreamReader) NextFrame() ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	for s.remaining == 0 {
		if err := s.readLength(); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, s.remaining)
	if err := readFull(s.b.r, buf, "frame"); err != nil {
		return nil, s.b.fail(err)
	}
	s.consumed(len(buf))
	return buf, nil
}

// drain discards the rest of the stream.
func (s *StreamReader) drain() error {
	_, err := io.Copy(io.Discard, s)
	return err
}
