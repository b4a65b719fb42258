// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package btldata implements the low level framing of 4bottle archives: the
// preamble and header of a bottle, length-prefixed stream frames, and the
// lazy Stream abstraction used to produce them.
//
// A bottle is encoded as:
//
//	magic (4 bytes) | version | reserved | type/header length (2 bytes)
//	header
//	stream*
//	0xff
//
// and each stream is a sequence of length-prefixed frames ending with a zero
// length. A stream may itself contain a complete bottle.
package btldata
