// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btldata

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"go.chromium.org/luci/common/errors"
)

// EncryptionScheme identifies the cipher and key derivation of an encrypted
// bottle.
type EncryptionScheme byte

// These are the supported encryption schemes.
const (
	// EncryptionChaCha20Poly1305 encrypts with ChaCha20-Poly1305, keyed by
	// argon2id of a passphrase.
	EncryptionChaCha20Poly1305 EncryptionScheme = iota + 1
)

const (
	// EncryptionBlockSize is the amount of plaintext sealed in each
	// ciphertext block.
	EncryptionBlockSize = 64 * 1024

	// SaltSize is the size of the random salt generated by NewKeyParams.
	SaltSize = 16

	// DefaultKeyTime and DefaultKeyMemory are the argon2id time and memory
	// (in KiB) parameters used by NewKeyParams.
	DefaultKeyTime   = 1
	DefaultKeyMemory = 64 * 1024

	// MaxKeyTime and MaxKeyMemory bound the cost parameters accepted from a
	// bottle header. MaxKeyMemory is 4 GiB.
	MaxKeyTime   = 64
	MaxKeyMemory = 4 * 1024 * 1024
)

// ErrDecrypt is returned when a ciphertext block fails to authenticate. This
// includes a wrong passphrase.
var ErrDecrypt = errors.New("decryption failed")

// Valid returns nil iff the EncryptionScheme is valid.
func (e EncryptionScheme) Valid() error {
	if e != EncryptionChaCha20Poly1305 {
		return errors.Reason("unknown encryption scheme 0x%x", byte(e)).Err()
	}
	return nil
}

func (e EncryptionScheme) String() string {
	if e == EncryptionChaCha20Poly1305 {
		return "chacha20poly1305"
	}
	return fmt.Sprintf("EncryptionScheme(%d)", byte(e))
}

// KeyParams are the key derivation parameters stored in an encrypted
// bottle's header.
type KeyParams struct {
	Salt   []byte
	Time   uint32
	Memory uint32
}

// NewKeyParams returns KeyParams with a fresh random salt and the default
// cost parameters.
func NewKeyParams() (KeyParams, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return KeyParams{}, errors.Annotate(err, "generating salt").Err()
	}
	return KeyParams{salt, DefaultKeyTime, DefaultKeyMemory}, nil
}

// Valid returns nil iff p can be used to derive a key.
func (p KeyParams) Valid() error {
	switch {
	case len(p.Salt) == 0:
		return errors.New("missing salt")
	case p.Time == 0:
		return errors.New("argon2 time must be positive")
	case p.Time > MaxKeyTime:
		return errors.Reason("argon2 time too large: %d > %d", p.Time, MaxKeyTime).Err()
	case p.Memory < 8:
		return errors.Reason("argon2 memory too small: %d KiB", p.Memory).Err()
	case p.Memory > MaxKeyMemory:
		return errors.Reason("argon2 memory too large: %d KiB > %d KiB", p.Memory, MaxKeyMemory).Err()
	}
	return nil
}

// AEAD derives the key for passphrase and returns the cipher for it.
func (e EncryptionScheme) AEAD(passphrase []byte, p KeyParams) (cipher.AEAD, error) {
	if err := e.Valid(); err != nil {
		return nil, err
	}
	if err := p.Valid(); err != nil {
		return nil, err
	}
	key := argon2.IDKey(passphrase, p.Salt, p.Time, p.Memory, 1, chacha20poly1305.KeySize)
	return chacha20poly1305.New(key)
}

// blockNonce is the nonce of the counter'th block. The last byte marks the
// final block, so that truncation at a block boundary fails to decrypt.
func blockNonce(aead cipher.AEAD, counter uint64, final bool) []byte {
	nonce := make([]byte, aead.NonceSize())
	binary.BigEndian.PutUint64(nonce[len(nonce)-9:], counter)
	if final {
		nonce[len(nonce)-1] = 1
	}
	return nonce
}

type encryptWriter struct {
	w       io.Writer
	aead    cipher.AEAD
	buf     []byte
	out     []byte
	counter uint64
	closed  bool
}

func (e *encryptWriter) seal(final bool) error {
	e.out = e.aead.Seal(e.out[:0], blockNonce(e.aead, e.counter, final), e.buf, nil)
	e.counter++
	e.buf = e.buf[:0]
	_, err := e.w.Write(e.out)
	return err
}

func (e *encryptWriter) Write(p []byte) (n int, err error) {
	if e.closed {
		return 0, errors.New("write after close")
	}
	for len(p) > 0 {
		// only seal a full block once there's more data behind it; the last
		// block is sealed by Close.
		if len(e.buf) == EncryptionBlockSize {
			if err = e.seal(false); err != nil {
				return
			}
		}
		c := copy(e.buf[len(e.buf):EncryptionBlockSize], p)
		e.buf = e.buf[:len(e.buf)+c]
		p = p[c:]
		n += c
	}
	return
}

func (e *encryptWriter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.seal(true)
}

// NewEncryptWriter returns a WriteCloser which encrypts everything written to
// it onto w in EncryptionBlockSize blocks. Close writes the final block and
// must be called.
func NewEncryptWriter(w io.Writer, aead cipher.AEAD) io.WriteCloser {
	return &encryptWriter{
		w:    w,
		aead: aead,
		buf:  make([]byte, 0, EncryptionBlockSize),
	}
}

type decryptReader struct {
	r    io.Reader
	aead cipher.AEAD

	// buf holds one ciphertext block plus one byte of the next block, which
	// distinguishes the final block.
	buf       []byte
	carry     byte
	haveCarry bool

	plain   []byte
	out     []byte
	counter uint64
	done    bool
	err     error
}

func (d *decryptReader) fill() error {
	n := 0
	if d.haveCarry {
		d.buf[0] = d.carry
		n = 1
	}
	m, err := io.ReadFull(d.r, d.buf[n:])
	n += m

	final := false
	switch err {
	case nil:
	case io.EOF, io.ErrUnexpectedEOF:
		final = true
	default:
		return errors.Annotate(err, "reading block %d", d.counter).Err()
	}

	ct := d.buf[:n]
	if !final {
		ct, d.carry, d.haveCarry = ct[:n-1], ct[n-1], true
	}
	if len(ct) < d.aead.Overhead() {
		return errors.Annotate(ErrTruncated, "encrypted block %d is %d bytes", d.counter, len(ct)).Err()
	}

	d.out, err = d.aead.Open(d.out[:0], blockNonce(d.aead, d.counter, final), ct, nil)
	if err != nil {
		return errors.Annotate(ErrDecrypt, "block %d", d.counter).Err()
	}
	d.counter++
	d.plain = d.out
	d.done = final
	return nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	for len(d.plain) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.done {
			return 0, io.EOF
		}
		d.err = d.fill()
	}
	n := copy(p, d.plain)
	d.plain = d.plain[n:]
	return n, nil
}

// NewDecryptReader returns a Reader of the plaintext of the blocks written by
// an encrypt writer with the same aead.
//
// Every block is authenticated before any of it is returned. A missing
// final block is reported as ErrDecrypt or ErrTruncated.
func NewDecryptReader(r io.Reader, aead cipher.AEAD) io.Reader {
	return &decryptReader{
		r:    r,
		aead: aead,
		buf:  make([]byte, EncryptionBlockSize+aead.Overhead()+1),
	}
}

// Encrypt returns a Stream of src encrypted with aead.
func Encrypt(src Stream, aead cipher.AEAD) (Stream, error) {
	return Transform(src, func(w io.Writer) (io.WriteCloser, error) {
		return NewEncryptWriter(w, aead), nil
	})
}
