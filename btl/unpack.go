// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
)

func ensureRoot(root string) error {
	st, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(root, 0777); err != nil {
			return errors.Annotate(err, "making root dir").Err()
		}
		return nil
	case err != nil:
		return err
	case !st.IsDir():
		return errors.Reason("%q is not a directory", root).Err()
	}
	f, err := os.Open(root)
	if err != nil {
		return err
	}
	names, err := f.Readdirnames(1)
	f.Close()
	if err != nil && err != io.EOF {
		return err
	}
	if len(names) != 0 {
		return errors.New("dir not empty")
	}
	return nil
}

// applyAttrs sets the mode, times and platform attributes of the file at abs.
func applyAttrs(abs string, fi *FileInfo) error {
	if fi.Mode.Perm() != 0 {
		if err := os.Chmod(abs, fi.Mode.Perm()); err != nil {
			return errors.Annotate(err, "setting mode").Err()
		}
	}
	if !fi.Modified.IsZero() {
		atime := fi.Accessed
		if atime.IsZero() {
			atime = fi.Modified
		}
		if err := os.Chtimes(abs, atime, fi.Modified); err != nil {
			return errors.Annotate(err, "setting times").Err()
		}
	}
	if err := setPlatformAttributes(abs, fi); err != nil {
		return errors.Annotate(err, "setting platform attributes").Err()
	}
	return nil
}

func ensureFile(syncBuf []byte, wg *sync.WaitGroup, ech chan<- error, abs, rel string, r io.Reader, fi *FileInfo) {
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		ech <- errors.Annotate(err, "creating file %q", rel).Err()
		return
	}
	// must copy in main goroutine because all files are sequential in
	// r. However, we don't need to block on closing the file.
	n, err := io.CopyBuffer(f, r, syncBuf)
	if err != nil {
		f.Close()
		ech <- errors.Annotate(err, "writing file %q", rel).Err()
		return
	}
	if uint64(n) != fi.Size {
		ech <- errors.Reason("file %q is %d bytes, expected %d", rel, n, fi.Size).Err()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := f.Close(); err != nil {
			ech <- errors.Annotate(err, "closing file %q", rel).Err()
			return
		}
		if err := applyAttrs(abs, fi); err != nil {
			ech <- errors.Annotate(err, "file %q", rel).Err()
		}
	}()
}

type unpackedDir struct {
	abs, rel string
	fi       *FileInfo
}

// UnpackTo does a streaming unpack of the bottle read from r into root.
//
// root must be either a non-existant path, or a path to an empty directory.
// The bottle's top level file or folder is created inside root.
//
// Files are written as they're read, so an error (including a hash
// mismatch) may leave a partial unpack behind.
func UnpackTo(ctx context.Context, r io.Reader, root string, options ...OpenOption) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return errors.Annotate(err, "making abspath").Err()
	}

	if err := ensureRoot(root); err != nil {
		return errors.Annotate(err, "checking root").Err()
	}

	var walkErr error
	ech := make(chan error)
	go func() {
		defer close(ech)

		wg := &sync.WaitGroup{}
		defer wg.Wait()

		syncBuf := make([]byte, 32*1024)
		var dirs []unpackedDir

		walkErr = Walk(ctx, r, func(path []string, fi *FileInfo, contents io.Reader) error {
			rel := filepath.Join(path...)
			abs := filepath.Join(root, rel)

			if fi.IsFolder {
				if err := os.Mkdir(abs, 0777); err != nil {
					// this immediately quits the walk
					return errors.Annotate(err, "FATAL: making dir %q", rel).Err()
				}
				dirs = append(dirs, unpackedDir{abs, rel, fi})
				return nil
			}
			ensureFile(syncBuf, wg, ech, abs, rel, contents, fi)
			return nil
		}, options...)

		// deepest first, after all of their contents exist.
		for i := len(dirs) - 1; i >= 0; i-- {
			d := dirs[i]
			if err := applyAttrs(d.abs, d.fi); err != nil {
				ech <- errors.Annotate(err, "dir %q", d.rel).Err()
			}
		}
	}()

	hadError := false
	for err := range ech {
		if !hadError {
			logging.Errorf(ctx, "errors while unpacking to %q:", root)
			hadError = true
		}
		logging.Errorf(ctx, "  %s", err)
	}
	if walkErr != nil {
		return errors.Annotate(walkErr, "unpacking").Err()
	}
	if hadError {
		return errors.New("errors while unpacking (see log)")
	}
	return nil
}
