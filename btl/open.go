// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btl

import (
	"bytes"
	"context"
	"io"
	"strings"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/iotools"
	"go.chromium.org/luci/common/logging"

	"github.com/riannucci/fourbottle/btl/btldata"
)

// maxDepth bounds the nesting of bottles within each other.
const maxDepth = 256

// VerifyStateEnum allows you to control whether Walk verifies the digests of
// hashed bottles. It defaults to VerifyLate.
type VerifyStateEnum int

// Valid values of VerifyStateEnum
const (
	// Digests are checked after the contents of the hashed bottle have been
	// walked, and a mismatch is returned from Walk.
	VerifyLate VerifyStateEnum = iota

	// Digest verification will be skipped.
	VerifyNever
)

type openOptionData struct {
	verifyState VerifyStateEnum
	passphrase  []byte
	caseSafe    bool
}

// OpenOption functions can be supplied to Walk and the functions built on it.
type OpenOption func(*openOptionData)

// WithVerification allows you to dictate how the digests of hashed bottles
// are verified.
func WithVerification(val VerifyStateEnum) OpenOption {
	return func(o *openOptionData) {
		o.verifyState = val
	}
}

// WithPassphrase supplies the passphrase of encrypted bottles.
func WithPassphrase(passphrase []byte) OpenOption {
	return func(o *openOptionData) {
		o.passphrase = passphrase
	}
}

// WithCaseSafe rejects folders with entries whose names differ only in case,
// which can't be unpacked onto case-insensitive filesystems.
func WithCaseSafe(val bool) OpenOption {
	return func(o *openOptionData) {
		o.caseSafe = val
	}
}

// WalkFunc is called by Walk for every file and folder in a bottle.
//
// path is the names of all enclosing folders followed by fi.Name. For files,
// contents reads the file's data and is only valid until WalkFunc returns;
// for folders it's nil, and WalkFunc is called before any of the folder's
// children.
//
// Returning an error from WalkFunc stops the walk.
type WalkFunc func(path []string, fi *FileInfo, contents io.Reader) error

// siblings tracks the names in one folder.
type siblings struct {
	names stringset.Set
	lower stringset.Set
}

func newSiblings(caseSafe bool) *siblings {
	ret := &siblings{names: stringset.New(0)}
	if caseSafe {
		ret.lower = stringset.New(0)
	}
	return ret
}

func (s *siblings) add(name string) error {
	if !s.names.Add(name) {
		return errors.Reason("duplicate entry %q", name).Err()
	}
	if s.lower != nil && !s.lower.Add(strings.ToLower(name)) {
		return errors.Reason("case-sensitive entry %q", name).Err()
	}
	return nil
}

type walker struct {
	ctx  context.Context
	fn   WalkFunc
	opts openOptionData

	depth int
}

// expectEnd checks that b has no more streams.
func expectEnd(b *btldata.Reader) error {
	switch _, err := b.NextStream(); err {
	case io.EOF:
		return nil
	case nil:
		return errors.Reason("unexpected extra stream in %s bottle", b.Type()).Err()
	default:
		return err
	}
}

// onlyStream returns the first stream of b, which must exist.
func onlyStream(b *btldata.Reader) (*btldata.StreamReader, error) {
	s, err := b.NextStream()
	if err == io.EOF {
		return nil, errors.Reason("%s bottle has no streams", b.Type()).Err()
	}
	return s, err
}

func (w *walker) walk(r io.Reader, path []string, sibs *siblings) error {
	if w.depth++; w.depth > maxDepth {
		return errors.Reason("bottles nested more than %d deep", maxDepth).Err()
	}
	defer func() { w.depth-- }()

	b, err := btldata.Open(r)
	if err != nil {
		return err
	}

	switch b.Type() {
	case btldata.TypeFile:
		return w.walkFile(b, path, sibs)
	case btldata.TypeHashed:
		return w.walkHashed(b, path, sibs)
	case btldata.TypeCompressed:
		return w.walkCompressed(b, path, sibs)
	case btldata.TypeEncrypted:
		return w.walkEncrypted(b, path, sibs)
	}
	return errors.Reason("unexpected %s bottle", b.Type()).Err()
}

func (w *walker) walkFile(b *btldata.Reader, path []string, sibs *siblings) error {
	fi, contents, err := readFileBottle(b)
	if err != nil {
		return err
	}
	if sibs != nil {
		if err := sibs.add(fi.Name); err != nil {
			return err
		}
	}
	path = append(path[:len(path):len(path)], fi.Name)

	if err := w.fn(path, fi, contents); err != nil {
		return err
	}
	if !fi.IsFolder {
		return expectEnd(b)
	}

	children := newSiblings(w.opts.caseSafe)
	for {
		s, err := b.NextStream()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.walk(s, path, children); err != nil {
			return errors.Annotate(err, "in %q", fi.Name).Err()
		}
	}
}

func (w *walker) walkHashed(b *btldata.Reader, path []string, sibs *siblings) error {
	scheme, err := headerScheme(b.Header())
	if err != nil {
		return errors.Annotate(err, "hashed bottle").Err()
	}
	hs := btldata.HashScheme(scheme)
	s, err := onlyStream(b)
	if err != nil {
		return err
	}
	r, h, err := hs.Reader(s)
	if err != nil {
		return err
	}

	if err := w.walk(r, path, sibs); err != nil {
		return err
	}
	// anything after the nested bottle is covered by the digest too.
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}

	ds, err := b.NextStream()
	if err == io.EOF {
		return errors.Reason("hashed bottle has no digest").Err()
	}
	if err != nil {
		return err
	}
	nominal, err := io.ReadAll(ds)
	if err != nil {
		return err
	}
	if w.opts.verifyState != VerifyNever {
		if actual := h.Sum(nil); !bytes.Equal(actual, nominal) {
			return &ErrMismatchedHash{hs, nominal, actual}
		}
		logging.Debugf(w.ctx, "verified %s digest", hs)
	}
	return expectEnd(b)
}

func (w *walker) walkCompressed(b *btldata.Reader, path []string, sibs *siblings) error {
	scheme, err := headerScheme(b.Header())
	if err != nil {
		return errors.Annotate(err, "compressed bottle").Err()
	}
	cs := btldata.CompressionScheme(scheme)
	s, err := onlyStream(b)
	if err != nil {
		return err
	}
	r, err := cs.Reader(s)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := w.walk(r, path, sibs); err != nil {
		return errors.Annotate(err, "in %s bottle", cs).Err()
	}
	// reach the end of the compressed data, so its checksums are verified.
	if _, err := io.Copy(io.Discard, r); err != nil {
		return errors.Annotate(err, "decompressing").Err()
	}
	return expectEnd(b)
}

func (w *walker) walkEncrypted(b *btldata.Reader, path []string, sibs *siblings) error {
	if w.opts.passphrase == nil {
		return ErrNeedPassphrase
	}
	scheme, err := headerScheme(b.Header())
	if err != nil {
		return errors.Annotate(err, "encrypted bottle").Err()
	}
	params, err := keyParams(b.Header())
	if err != nil {
		return errors.Annotate(err, "encrypted bottle").Err()
	}
	aead, err := btldata.EncryptionScheme(scheme).AEAD(w.opts.passphrase, params)
	if err != nil {
		return err
	}
	s, err := onlyStream(b)
	if err != nil {
		return err
	}
	r := btldata.NewDecryptReader(s, aead)
	if err := w.walk(r, path, sibs); err != nil {
		return err
	}
	// the final block must still be authenticated.
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	return expectEnd(b)
}

// Walk reads the bottle from r, calling fn for every file and folder in it.
//
// Hashed, compressed and encrypted bottles are unwrapped transparently.
// Digests are checked as each hashed bottle ends, so fn may see the contents
// of a hashed bottle before Walk returns an *ErrMismatchedHash for it.
func Walk(ctx context.Context, r io.Reader, fn WalkFunc, options ...OpenOption) error {
	opts := openOptionData{}
	for _, o := range options {
		o(&opts)
	}

	cr := &iotools.CountingReader{Reader: r}
	w := &walker{ctx: ctx, fn: fn, opts: opts}
	if err := w.walk(cr, nil, nil); err != nil {
		return err
	}
	logging.Debugf(ctx, "read %d bytes", cr.Count)
	return nil
}

// Entry is one file or folder in a bottle, as returned by List.
type Entry struct {
	Path []string
	Info *FileInfo
}

// List returns every file and folder in the bottle read from r, in order.
func List(ctx context.Context, r io.Reader, options ...OpenOption) ([]Entry, error) {
	var ret []Entry
	err := Walk(ctx, r, func(path []string, fi *FileInfo, _ io.Reader) error {
		ret = append(ret, Entry{append([]string(nil), path...), fi})
		return nil
	}, options...)
	return ret, err
}
