// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"

	"go.chromium.org/luci/common/errors"
)

// HashScheme identifies the digest algorithm of a hashed bottle.
type HashScheme byte

// These are the available hash algorithms.
const (
	HashSHA2_256 HashScheme = iota + 1
	HashSHA2_512
	HashBLAKE2s
	HashBLAKE2b
	HashSHA3_256
	HashSHA3_512
)

var hashNames = map[HashScheme]string{
	HashSHA2_256: "sha256",
	HashSHA2_512: "sha512",
	HashBLAKE2s:  "blake2s",
	HashBLAKE2b:  "blake2b",
	HashSHA3_256: "sha3-256",
	HashSHA3_512: "sha3-512",
}

// ParseHashScheme returns the HashScheme with the given name, as returned by
// HashScheme.String.
func ParseHashScheme(name string) (HashScheme, error) {
	for c, n := range hashNames {
		if n == name {
			return c, nil
		}
	}
	return 0, errors.Reason("unknown hash scheme %q", name).Err()
}

// Valid returns nil iff the HashScheme is valid.
func (c HashScheme) Valid() error {
	if _, ok := hashNames[c]; !ok {
		return errors.Reason("unknown hash scheme 0x%x", byte(c)).Err()
	}
	return nil
}

func (c HashScheme) String() string {
	if n, ok := hashNames[c]; ok {
		return n
	}
	return fmt.Sprintf("HashScheme(%d)", byte(c))
}

// Hash gets a new hash.Hash for this scheme. It panics if the scheme is
// invalid.
func (c HashScheme) Hash() hash.Hash {
	var h hash.Hash
	switch c {
	case HashSHA2_256:
		h = sha256.New()
	case HashSHA2_512:
		h = sha512.New()
	case HashBLAKE2s:
		h, _ = blake2s.New256(nil)
	case HashBLAKE2b:
		h, _ = blake2b.New512(nil)
	case HashSHA3_256:
		h = sha3.New256()
	case HashSHA3_512:
		h = sha3.New512()
	}
	if h == nil {
		panic(c.Valid())
	}
	return h
}

type hashingStream struct {
	src  Stream
	h    hash.Hash
	done bool
}

func (s *hashingStream) Next(ctx context.Context) (Chunk, error) {
	c, err := s.src.Next(ctx)
	if err == io.EOF {
		s.done = true
	}
	if err != nil {
		return nil, err
	}
	for _, b := range c {
		s.h.Write(b)
	}
	return c, nil
}

// Digest returns two Streams. The first yields the chunks of src unchanged,
// hashing them as they pass. The second yields the digest, and may only be
// pulled once the first has been exhausted.
func (c HashScheme) Digest(src Stream) (data, digest Stream, err error) {
	if err = c.Valid(); err != nil {
		return
	}
	hs := &hashingStream{src: src, h: c.Hash()}
	sent := false
	return hs, StreamFunc(func(context.Context) (Chunk, error) {
		switch {
		case sent:
			return nil, io.EOF
		case !hs.done:
			return nil, errors.Reason("%s digest pulled before its data", c).Err()
		}
		sent = true
		return Chunk{hs.h.Sum(nil)}, nil
	}), nil
}

// Reader returns a Reader which hashes everything read through it from r.
func (c HashScheme) Reader(r io.Reader) (io.Reader, hash.Hash, error) {
	if err := c.Valid(); err != nil {
		return nil, nil, err
	}
	h := c.Hash()
	return io.TeeReader(r, h), h, nil
}
