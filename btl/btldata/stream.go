// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"bytes"
	"context"
	"io"
	"net"
)

// Chunk is a group of buffers which are logically one contiguous run of
// bytes. Buffers are kept separate to avoid copying.
type Chunk [][]byte

// Len returns the total number of bytes in the chunk.
func (c Chunk) Len() (ret int) {
	for _, b := range c {
		ret += len(b)
	}
	return
}

// Bytes returns the contents of the chunk as a single buffer.
func (c Chunk) Bytes() []byte {
	if len(c) == 1 {
		return c[0]
	}
	ret := make([]byte, 0, c.Len())
	for _, b := range c {
		ret = append(ret, b...)
	}
	return ret
}

// Stream is a lazy sequence of chunks.
//
// Next returns io.EOF once the stream is exhausted. Nothing is produced until
// Next is called, and a Stream must not be used after it returns an error.
type Stream interface {
	Next(ctx context.Context) (Chunk, error)
}

// StreamFunc adapts a function to the Stream interface.
type StreamFunc func(ctx context.Context) (Chunk, error)

// Next implements Stream.
func (f StreamFunc) Next(ctx context.Context) (Chunk, error) { return f(ctx) }

type sliceStream struct {
	chunks []Chunk
}

func (s *sliceStream) Next(ctx context.Context) (Chunk, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	ret := s.chunks[0]
	s.chunks = s.chunks[1:]
	return ret, nil
}

// StreamOf returns a Stream which yields the given chunks in order.
func StreamOf(chunks ...Chunk) Stream {
	return &sliceStream{chunks}
}

// BytesStream returns a Stream which yields each buffer as its own chunk.
func BytesStream(bufs ...[]byte) Stream {
	chunks := make([]Chunk, len(bufs))
	for i, b := range bufs {
		chunks[i] = Chunk{b}
	}
	return StreamOf(chunks...)
}

type readerStream struct {
	r    io.Reader
	size int
	err  error
}

func (s *readerStream) Next(ctx context.Context) (Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.size)
	n, err := io.ReadFull(s.r, buf)
	switch err {
	case nil:
	case io.ErrUnexpectedEOF:
		s.err = io.EOF
	default:
		s.err = err
	}
	if n == 0 {
		return nil, s.err
	}
	return Chunk{buf[:n]}, nil
}

// ReaderStream returns a Stream which reads r in chunks of up to size
// bytes.
func ReaderStream(r io.Reader, size int) Stream {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &readerStream{r: r, size: size}
}

type concatStream struct {
	streams []Stream
}

func (s *concatStream) Next(ctx context.Context) (Chunk, error) {
	for len(s.streams) > 0 {
		c, err := s.streams[0].Next(ctx)
		if err == io.EOF {
			s.streams = s.streams[1:]
			continue
		}
		return c, err
	}
	return nil, io.EOF
}

// Concat returns a Stream which yields all of the chunks of each stream, in
// order.
func Concat(streams ...Stream) Stream {
	return &concatStream{streams}
}

type coalesceStream struct {
	src  Stream
	min  int
	done bool
}

func (s *coalesceStream) Next(ctx context.Context) (Chunk, error) {
	if s.done {
		return nil, io.EOF
	}
	var ret Chunk
	size := 0
	for size < s.min {
		c, err := s.src.Next(ctx)
		if err == io.EOF {
			s.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		for _, b := range c {
			if len(b) > 0 {
				ret = append(ret, b)
				size += len(b)
			}
		}
	}
	if size == 0 {
		return nil, io.EOF
	}
	return ret, nil
}

// Coalesce returns a Stream which groups the chunks of src so that every
// chunk is at least min bytes, except possibly the last one. Empty buffers
// are dropped, and the returned stream never yields an empty chunk.
//
// Buffers are not copied.
func Coalesce(src Stream, min int) Stream {
	return &coalesceStream{src: src, min: min}
}

type transformStream struct {
	src  Stream
	buf  bytes.Buffer
	w    io.WriteCloser
	done bool
}

func (s *transformStream) Next(ctx context.Context) (Chunk, error) {
	for s.buf.Len() == 0 {
		if s.done {
			return nil, io.EOF
		}
		c, err := s.src.Next(ctx)
		if err == io.EOF {
			s.done = true
			if err := s.w.Close(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, b := range c {
			if _, err := s.w.Write(b); err != nil {
				return nil, err
			}
		}
	}
	ret := bytes.Clone(s.buf.Bytes())
	s.buf.Reset()
	return Chunk{ret}, nil
}

// Transform returns a Stream which pipes src through the WriteCloser
// returned by wrap, and yields whatever that writes. The WriteCloser is
// closed once src is exhausted.
//
// This runs synchronously: each Next pulls from src until wrap's writer
// has produced some output.
func Transform(src Stream, wrap func(w io.Writer) (io.WriteCloser, error)) (Stream, error) {
	ret := &transformStream{src: src}
	w, err := wrap(&ret.buf)
	if err != nil {
		return nil, err
	}
	ret.w = w
	return ret, nil
}

// WriteStream writes every chunk of s to w, and returns the number of bytes
// written.
func WriteStream(ctx context.Context, w io.Writer, s Stream) (total int64, err error) {
	for {
		if err = ctx.Err(); err != nil {
			return
		}
		var c Chunk
		if c, err = s.Next(ctx); err != nil {
			if err == io.EOF {
				err = nil
			}
			return
		}
		// WriteTo consumes the slice it's called on, so don't hand it c.
		bufs := append(net.Buffers(nil), c...)
		var n int64
		n, err = bufs.WriteTo(w)
		total += n
		if err != nil {
			return
		}
	}
}

// ReadAll drains s and returns everything it yielded as a single buffer.
func ReadAll(ctx context.Context, s Stream) ([]byte, error) {
	buf := bytes.Buffer{}
	_, err := WriteStream(ctx, &buf, s)
	return buf.Bytes(), err
}

type streamReader struct {
	ctx  context.Context
	src  Stream
	cur  Chunk
	head []byte
	err  error
}

func (r *streamReader) Read(p []byte) (n int, err error) {
	for n == 0 && len(p) > 0 {
		for len(r.head) == 0 {
			if len(r.cur) > 0 {
				r.head, r.cur = r.cur[0], r.cur[1:]
				continue
			}
			if r.err != nil {
				return 0, r.err
			}
			r.cur, r.err = r.src.Next(r.ctx)
		}
		c := copy(p, r.head)
		r.head = r.head[c:]
		n += c
	}
	return n, nil
}

// NewReader returns an io.Reader over the bytes yielded by s. Pulls from s
// happen with ctx.
func NewReader(ctx context.Context, s Stream) io.Reader {
	return &streamReader{ctx: ctx, src: s}
}
