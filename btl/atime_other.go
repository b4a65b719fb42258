// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build !linux

package btl

import (
	"os"
	"time"
)

func accessTime(st os.FileInfo) time.Time {
	return time.Time{}
}
