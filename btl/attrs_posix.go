// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !windows

package btl

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// ownerNames returns the names of the user and group owning st, falling back
// to the numeric ids if they can't be looked up.
func ownerNames(st os.FileInfo) (usr, grp string) {
	sys, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	usr = strconv.FormatUint(uint64(sys.Uid), 10)
	if u, err := user.LookupId(usr); err == nil {
		usr = u.Username
	}
	grp = strconv.FormatUint(uint64(sys.Gid), 10)
	if g, err := user.LookupGroupId(grp); err == nil {
		grp = g.Name
	}
	return
}

func setPlatformAttributes(path string, fi *FileInfo) error {
	return nil
}
