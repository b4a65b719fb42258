// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/iotools"
	"go.chromium.org/luci/common/logging"

	"github.com/riannucci/fourbottle/btl/btldata"
)

type createOptionData struct {
	compressKind  btldata.CompressionScheme
	compressLevel int
	hashKind      btldata.HashScheme

	passphrase []byte
	keyParams  btldata.KeyParams

	chunkSize int
}

// CreateOption functions can be supplied to the Pack function.
type CreateOption func(*createOptionData)

// WithCompression sets the compression of the packed bottle. A kind of 0
// disables compression.
func WithCompression(kind btldata.CompressionScheme, level int) CreateOption {
	return func(o *createOptionData) {
		o.compressKind = kind
		o.compressLevel = level
	}
}

// WithHash sets the hash of the packed bottle. A kind of 0 disables hashing.
func WithHash(kind btldata.HashScheme) CreateOption {
	return func(o *createOptionData) {
		o.hashKind = kind
	}
}

// WithEncryption encrypts the packed bottle with passphrase. If params has no
// salt, NewKeyParams is used.
func WithEncryption(passphrase []byte, params btldata.KeyParams) CreateOption {
	return func(o *createOptionData) {
		o.passphrase = passphrase
		o.keyParams = params
	}
}

// WithChunkSize sets the size of reads from packed files.
func WithChunkSize(size int) CreateOption {
	return func(o *createOptionData) {
		o.chunkSize = size
	}
}

// lazyStream defers building a Stream until it's first pulled.
type lazyStream struct {
	mk func() (btldata.Stream, error)
	s  btldata.Stream
}

func (l *lazyStream) Next(ctx context.Context) (btldata.Chunk, error) {
	if l.s == nil {
		s, err := l.mk()
		if err != nil {
			return nil, err
		}
		l.s = s
	}
	return l.s.Next(ctx)
}

// fileStream reads a file, closing it when the read ends.
type fileStream struct {
	path string
	size uint64

	f  *os.File
	cr *iotools.CountingReader
	s  btldata.Stream
}

func (f *fileStream) Next(ctx context.Context) (btldata.Chunk, error) {
	c, err := f.s.Next(ctx)
	if err == nil {
		return c, nil
	}
	if f.f != nil {
		if cerr := f.f.Close(); cerr != nil && err == io.EOF {
			err = cerr
		}
		f.f = nil
	}
	if err != io.EOF {
		return nil, errors.Annotate(err, "reading %q", f.path).Err()
	}
	if uint64(f.cr.Count) != f.size {
		return nil, errors.Reason("%q changed while packing: read %d bytes, expected %d", f.path, f.cr.Count, f.size).Err()
	}
	return nil, io.EOF
}

func openFile(ctx context.Context, path string, fi *FileInfo, chunkSize int) (btldata.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "opening %q", path).Err()
	}
	logging.Debugf(ctx, "packing %q (%d bytes)", path, fi.Size)
	cr := &iotools.CountingReader{Reader: f}
	return &fileStream{
		path: path,
		size: fi.Size,
		f:    f,
		cr:   cr,
		s:    btldata.ReaderStream(cr, chunkSize),
	}, nil
}

func packPath(ctx context.Context, path string, opts *createOptionData) (btldata.Stream, error) {
	st, err := os.Lstat(path)
	if err != nil {
		return nil, errors.Annotate(err, "statting %q", path).Err()
	}
	fi := FileInfoFromOS(path, st)

	switch {
	case st.Mode().IsRegular():
		return FileBottle(fi, &lazyStream{mk: func() (btldata.Stream, error) {
			return openFile(ctx, path, fi, opts.chunkSize)
		}})

	case st.IsDir():
		ents, err := os.ReadDir(path)
		if err != nil {
			return nil, errors.Annotate(err, "reading dir %q", path).Err()
		}
		children := make([]btldata.Stream, 0, len(ents))
		for _, ent := range ents {
			if !ent.Type().IsRegular() && !ent.IsDir() {
				logging.Warningf(ctx, "skipping %q: unsupported file type %s", filepath.Join(path, ent.Name()), ent.Type())
				continue
			}
			child := filepath.Join(path, ent.Name())
			children = append(children, &lazyStream{mk: func() (btldata.Stream, error) {
				return packPath(ctx, child, opts)
			}})
		}
		return FolderBottle(fi, children...)
	}
	return nil, errors.Reason("%q: unsupported file type %s", path, st.Mode().Type()).Err()
}

// DefaultHash is the hash Pack uses unless WithHash is given. SHA-512 is
// faster than SHA-256 on 64-bit x86.
func DefaultHash() btldata.HashScheme {
	if runtime.GOARCH == "amd64" {
		return btldata.HashSHA2_512
	}
	return btldata.HashSHA2_256
}

// Pack returns a Stream of a bottle of the file or folder at path.
//
// Nothing is read until the stream is pulled, and files are opened one at a
// time as their contents are needed. The file bottle is wrapped, in order,
// in a compressed bottle, an encrypted bottle and a hashed bottle, as
// selected by options.
func Pack(ctx context.Context, path string, options ...CreateOption) (btldata.Stream, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	opts := createOptionData{
		compressKind:  btldata.CompressionFlate,
		compressLevel: 9,
		hashKind:      DefaultHash(),
		chunkSize:     btldata.DefaultChunkSize,
	}
	for _, o := range options {
		o(&opts)
	}

	ret, err := packPath(ctx, path, &opts)
	if err != nil {
		return nil, err
	}

	if opts.compressKind != 0 {
		logging.Debugf(ctx, "compressing with %s level %d", opts.compressKind, opts.compressLevel)
		if ret, err = CompressedBottle(opts.compressKind, opts.compressLevel, ret); err != nil {
			return nil, errors.Annotate(err, "compressing").Err()
		}
	}

	if opts.passphrase != nil {
		params := opts.keyParams
		if len(params.Salt) == 0 {
			if params, err = btldata.NewKeyParams(); err != nil {
				return nil, err
			}
		}
		logging.Debugf(ctx, "encrypting (argon2 time=%d memory=%dKiB)", params.Time, params.Memory)
		if ret, err = EncryptedBottle(btldata.EncryptionChaCha20Poly1305, opts.passphrase, params, ret); err != nil {
			return nil, errors.Annotate(err, "encrypting").Err()
		}
	}

	if opts.hashKind != 0 {
		logging.Debugf(ctx, "hashing with %s", opts.hashKind)
		if ret, err = HashedBottle(opts.hashKind, ret); err != nil {
			return nil, errors.Annotate(err, "hashing").Err()
		}
	}

	return ret, nil
}
