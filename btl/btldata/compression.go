// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	"go.chromium.org/luci/common/errors"
)

// CompressionScheme indicates the compression used in a compressed bottle.
type CompressionScheme byte

// These are the currently supported compressions schemes.
const (
	CompressionFlate CompressionScheme = iota + 1
	CompressionZstd
	CompressionS2
)

// DefaultLevel selects each scheme's default compression level.
const DefaultLevel = 0

var compressionNames = map[CompressionScheme]string{
	CompressionFlate: "flate",
	CompressionZstd:  "zstd",
	CompressionS2:    "s2",
}

// ParseCompressionScheme returns the CompressionScheme with the given name, as
// returned by CompressionScheme.String.
func ParseCompressionScheme(name string) (CompressionScheme, error) {
	for c, n := range compressionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, errors.Reason("unknown compression scheme %q", name).Err()
}

func (c CompressionScheme) String() string {
	if n, ok := compressionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CompressionScheme(%d)", byte(c))
}

// Writer returns a new compressing writer for the given scheme.
//
// The meaning of level depends on the scheme; DefaultLevel is always
// acceptable. Writes to w only happen during calls to Write and Close.
func (c CompressionScheme) Writer(w io.Writer, level int) (io.WriteCloser, error) {
	switch c {
	case CompressionFlate:
		if level == DefaultLevel {
			level = flate.DefaultCompression
		}
		return flate.NewWriter(w, level)

	case CompressionZstd:
		zl := zstd.SpeedDefault
		if level != DefaultLevel {
			zl = zstd.EncoderLevelFromZstd(level)
		}
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zl), zstd.WithEncoderConcurrency(1))

	case CompressionS2:
		opts := []s2.WriterOption{s2.WriterConcurrency(1)}
		switch {
		case level >= 3:
			opts = append(opts, s2.WriterBestCompression())
		case level == 2:
			opts = append(opts, s2.WriterBetterCompression())
		}
		return s2.NewWriter(w, opts...), nil
	}
	return nil, c.Valid()
}

// Reader returns a new decompressing reader for the given scheme.
func (c CompressionScheme) Reader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CompressionFlate:
		return flate.NewReader(r), nil

	case CompressionZstd:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Annotate(err, "creating zstd reader").Err()
		}
		return readCloseHook{d, func() error {
			d.Close()
			return nil
		}}, nil

	case CompressionS2:
		return readCloseHook{s2.NewReader(r), nil}, nil
	}
	return nil, c.Valid()
}

// Valid returns a nil err iff this CompressionScheme is valid.
func (c CompressionScheme) Valid() error {
	if _, ok := compressionNames[c]; !ok {
		return errors.Reason("unknown compression scheme 0x%x", byte(c)).Err()
	}
	return nil
}

// Compress returns a Stream of src compressed with c.
func (c CompressionScheme) Compress(src Stream, level int) (Stream, error) {
	if err := c.Valid(); err != nil {
		return nil, err
	}
	return Transform(src, func(w io.Writer) (io.WriteCloser, error) {
		return c.Writer(w, level)
	})
}
