// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btl

import (
	"io"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl/btldata"
	"github.com/riannucci/fourbottle/btl/btldata/header"
)

// Field ids of a file bottle's header.
const (
	fieldName  = 0
	fieldMime  = 1
	fieldUser  = 2
	fieldGroup = 3

	fieldSize     = 0
	fieldMode     = 1
	fieldCreated  = 2
	fieldModified = 3
	fieldAccessed = 4

	fieldIsFolder = 0
)

// FileInfo is the metadata of a file or folder, as stored in the header of
// a file bottle. Zero fields are omitted from the header.
type FileInfo struct {
	Name     string
	MimeType string
	User     string
	Group    string

	Size uint64
	Mode os.FileMode

	Created  time.Time
	Modified time.Time
	Accessed time.Time

	IsFolder bool
}

var badChars = regexp.MustCompile("[<>:\"/\\\\|?*\x00-\x1f]")

// checkName returns an error if name is unsafe to use as a single path
// component.
func checkName(name string) error {
	switch name {
	case "":
		return errors.New("empty name")
	case ".", "..":
		return errors.Reason("relative name %q not allowed", name).Err()
	}
	if idxs := badChars.FindStringIndex(name); len(idxs) > 0 {
		return errors.Reason("bad char %q in name %q", name[idxs[0]:idxs[1]], name).Err()
	}
	return nil
}

func addTime(h *header.Header, id int, t time.Time) error {
	if t.IsZero() || t.UnixNano() <= 0 {
		return nil
	}
	return h.AddInt(id, uint64(t.UnixNano()))
}

func getTime(h *header.Header, id int) time.Time {
	if ns, ok := h.Int(id); ok {
		return time.Unix(0, int64(ns))
	}
	return time.Time{}
}

// Header encodes fi as a file bottle header.
func (fi *FileInfo) Header() (*header.Header, error) {
	if err := checkName(fi.Name); err != nil {
		return nil, err
	}
	h := &header.Header{}
	err := h.AddString(fieldName, fi.Name)
	for _, f := range []struct {
		id  int
		val string
	}{{fieldMime, fi.MimeType}, {fieldUser, fi.User}, {fieldGroup, fi.Group}} {
		if err == nil && f.val != "" {
			err = h.AddString(f.id, f.val)
		}
	}
	if err == nil && !fi.IsFolder {
		err = h.AddInt(fieldSize, fi.Size)
	}
	if err == nil && fi.Mode != 0 {
		err = h.AddInt(fieldMode, uint64(fi.Mode.Perm()))
	}
	for _, f := range []struct {
		id  int
		val time.Time
	}{{fieldCreated, fi.Created}, {fieldModified, fi.Modified}, {fieldAccessed, fi.Accessed}} {
		if err == nil {
			err = addTime(h, f.id, f.val)
		}
	}
	if err == nil && fi.IsFolder {
		err = h.AddBool(fieldIsFolder)
	}
	if err != nil {
		return nil, errors.Annotate(err, "encoding header for %q", fi.Name).Err()
	}
	return h, nil
}

// ParseFileInfo decodes the header of a file bottle.
func ParseFileInfo(h *header.Header) (*FileInfo, error) {
	fi := &FileInfo{}
	fi.Name, _ = h.String(fieldName)
	if err := checkName(fi.Name); err != nil {
		return nil, err
	}
	fi.MimeType, _ = h.String(fieldMime)
	fi.User, _ = h.String(fieldUser)
	fi.Group, _ = h.String(fieldGroup)
	fi.Size, _ = h.Int(fieldSize)
	if mode, ok := h.Int(fieldMode); ok {
		fi.Mode = os.FileMode(mode).Perm()
	}
	fi.Created = getTime(h, fieldCreated)
	fi.Modified = getTime(h, fieldModified)
	fi.Accessed = getTime(h, fieldAccessed)
	fi.IsFolder = h.Bool(fieldIsFolder)
	if fi.IsFolder {
		fi.Mode |= os.ModeDir
	}
	return fi, nil
}

// FileInfoFromOS returns the FileInfo of the file at path, as described by
// st.
func FileInfoFromOS(path string, st os.FileInfo) *FileInfo {
	fi := &FileInfo{
		Name:     st.Name(),
		Mode:     st.Mode().Perm(),
		Modified: st.ModTime(),
		IsFolder: st.IsDir(),
	}
	if !fi.IsFolder {
		fi.Size = uint64(st.Size())
		fi.MimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	fi.User, fi.Group = ownerNames(st)
	fi.Accessed = accessTime(st)
	return fi
}

// FileBottle returns a file bottle of fi with the given contents.
func FileBottle(fi *FileInfo, contents btldata.Stream) (btldata.Stream, error) {
	if fi.IsFolder {
		return nil, errors.Reason("%q is a folder", fi.Name).Err()
	}
	h, err := fi.Header()
	if err != nil {
		return nil, err
	}
	return btldata.MakeBottle(btldata.TypeFile, h, contents)
}

// FolderBottle returns a folder bottle of fi. Each child must be a complete
// bottle.
func FolderBottle(fi *FileInfo, children ...btldata.Stream) (btldata.Stream, error) {
	if !fi.IsFolder {
		return nil, errors.Reason("%q is not a folder", fi.Name).Err()
	}
	h, err := fi.Header()
	if err != nil {
		return nil, err
	}
	return btldata.MakeBottle(btldata.TypeFile, h, children...)
}

// readFileBottle decodes a file bottle whose header has been read. For a file,
// it returns the contents stream as well.
func readFileBottle(b *btldata.Reader) (*FileInfo, io.Reader, error) {
	fi, err := ParseFileInfo(b.Header())
	if err != nil {
		return nil, nil, err
	}
	if fi.IsFolder {
		return fi, nil, nil
	}
	s, err := b.NextStream()
	if err == io.EOF {
		return nil, nil, errors.Reason("file %q has no contents stream", fi.Name).Err()
	}
	if err != nil {
		return nil, nil, err
	}
	return fi, s, nil
}
