// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build windows

package btl

import (
	"os"
	"strings"
	"syscall"
)

// See GetFileAttributes for values.
const winAttrHidden = 0x2

func ownerNames(st os.FileInfo) (usr, grp string) {
	return
}

// setPlatformAttributes hides dotfiles, which are hidden by convention on
// every other platform.
func setPlatformAttributes(path string, fi *FileInfo) error {
	if !strings.HasPrefix(fi.Name, ".") {
		return nil
	}
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := syscall.GetFileAttributes(p)
	if err != nil {
		return err
	}
	return syscall.SetFileAttributes(p, attrs|winAttrHidden)
}
