// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fourbottle implements 4bottle, a streaming archive format built out
// of nested "bottles".
//
// Every bottle has the same shape:
//   - 4 magic bytes (the UTF-8 encoding of U+1F37C, a baby bottle).
//   - a version byte and a reserved byte, both currently 0.
//   - 2 bytes holding the bottle type (high 4 bits) and the length of the
//     header (low 12 bits, so at most 4095 bytes).
//   - the header, a list of small typed fields.
//   - zero or more streams, each a sequence of length-prefixed frames ending
//     with a zero length.
//   - a single 0xff byte.
//
// Any stream may itself contain a complete bottle, which is how archives are
// composed: a file bottle holds the contents of one file, a folder is a file
// bottle whose streams are the bottles of its children, and compressed,
// encrypted and hashed bottles each wrap a single inner bottle.
//
// Bottles are written by pulling lazily from a btldata.Stream, so an archive
// of any size can be produced in constant memory without knowing any lengths
// up front. They are read sequentially from an io.Reader without seeking.
//
// The btl/btldata package contains the framing, the btl package implements
// the bottle types and the filesystem operations, and cmd/bottle is a command
// line tool to pack, unpack and list archives.
package fourbottle
