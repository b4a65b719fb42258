// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btl

import (
	"fmt"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl/btldata"
	"github.com/riannucci/fourbottle/btl/btldata/header"
)

// Field ids shared by the wrapping bottle types.
const (
	fieldScheme = 0

	fieldSalt      = 0
	fieldKeyTime   = 1
	fieldKeyMemory = 2
)

// ErrMismatchedHash is returned when the digest of a hashed bottle doesn't
// match its contents.
type ErrMismatchedHash struct {
	Scheme  btldata.HashScheme
	Nominal []byte
	Actual  []byte
}

func (e *ErrMismatchedHash) Error() string {
	return fmt.Sprintf("mismatched hash (%s): %x expected %x", e.Scheme, e.Actual, e.Nominal)
}

// ErrNeedPassphrase is returned when reading an encrypted bottle without
// WithPassphrase.
var ErrNeedPassphrase = errors.New("encrypted bottle needs a passphrase")

func schemeHeader(scheme byte) *header.Header {
	h := &header.Header{}
	if err := h.AddInt(fieldScheme, uint64(scheme)); err != nil {
		panic(err)
	}
	return h
}

func headerScheme(h *header.Header) (byte, error) {
	scheme, ok := h.Int(fieldScheme)
	if !ok || scheme > 0xff {
		return 0, errors.Reason("missing or bad scheme field").Err()
	}
	return byte(scheme), nil
}

// HashedBottle returns a hashed bottle containing inner, which must be a
// complete bottle. The digest is computed as inner is pulled.
func HashedBottle(scheme btldata.HashScheme, inner btldata.Stream) (btldata.Stream, error) {
	data, digest, err := scheme.Digest(inner)
	if err != nil {
		return nil, err
	}
	return btldata.MakeBottle(btldata.TypeHashed, schemeHeader(byte(scheme)), data, digest)
}

// CompressedBottle returns a compressed bottle containing inner, which must be
// a complete bottle.
func CompressedBottle(scheme btldata.CompressionScheme, level int, inner btldata.Stream) (btldata.Stream, error) {
	data, err := scheme.Compress(inner, level)
	if err != nil {
		return nil, err
	}
	return btldata.MakeBottle(btldata.TypeCompressed, schemeHeader(byte(scheme)), data)
}

// EncryptedBottle returns an encrypted bottle containing inner, which must be
// a complete bottle, keyed with passphrase.
func EncryptedBottle(scheme btldata.EncryptionScheme, passphrase []byte, params btldata.KeyParams, inner btldata.Stream) (btldata.Stream, error) {
	aead, err := scheme.AEAD(passphrase, params)
	if err != nil {
		return nil, err
	}
	h := schemeHeader(byte(scheme))
	if err := h.AddString(fieldSalt, string(params.Salt)); err != nil {
		return nil, err
	}
	if err := h.AddInt(fieldKeyTime, uint64(params.Time)); err != nil {
		return nil, err
	}
	if err := h.AddInt(fieldKeyMemory, uint64(params.Memory)); err != nil {
		return nil, err
	}
	data, err := btldata.Encrypt(inner, aead)
	if err != nil {
		return nil, err
	}
	return btldata.MakeBottle(btldata.TypeEncrypted, h, data)
}

func keyParams(h *header.Header) (ret btldata.KeyParams, err error) {
	salt, ok := h.String(fieldSalt)
	t, ok2 := h.Int(fieldKeyTime)
	m, ok3 := h.Int(fieldKeyMemory)
	if !ok || !ok2 || !ok3 || t > 0xffffffff || m > 0xffffffff {
		err = errors.Reason("missing or bad key parameters").Err()
		return
	}
	ret = btldata.KeyParams{Salt: []byte(salt), Time: uint32(t), Memory: uint32(m)}
	if err = ret.Valid(); err != nil {
		err = errors.Annotate(err, "bad key parameters").Err()
	}
	return
}
