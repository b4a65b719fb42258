// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"io"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl/btldata/header"
	"github.com/riannucci/fourbottle/btl/btldata/zint"
)

// These are the errors returned by this package. They're always wrapped with
// additional context; use errors.Is to check for them.
var (
	ErrBadMagic       = errors.New("bad magic (not a 4bottle archive)")
	ErrBadVersion     = errors.New("incompatible version")
	ErrUnknownType    = errors.New("unknown bottle type")
	ErrHeaderTooLarge = errors.New("header too large")
	ErrTruncated      = errors.New("truncated input")
	ErrMalformedFrame = errors.New("malformed frame")

	ErrMalformedHeader = header.ErrMalformed
	ErrLengthOverflow  = zint.ErrLengthOverflow
)

// readFull is io.ReadFull, except that running out of data is reported as
// ErrTruncated.
func readFull(r io.Reader, buf []byte, what string) error {
	n, err := io.ReadFull(r, buf)
	switch err {
	case nil:
		return nil
	case io.EOF, io.ErrUnexpectedEOF:
		return errors.Annotate(ErrTruncated, "reading %s: got %d of %d bytes", what, n, len(buf)).Err()
	}
	return errors.Annotate(err, "reading %s", what).Err()
}
