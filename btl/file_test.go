// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package btl

import (
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	. "go.chromium.org/luci/common/testing/assertions"

	"github.com/riannucci/fourbottle/btl/btldata/header"
)

func TestFileInfo(t *testing.T) {
	t.Parallel()

	Convey("FileInfo", t, func() {
		Convey("checkName", func() {
			So(checkName("hello.txt"), ShouldBeNil)
			So(checkName(".hidden"), ShouldBeNil)
			So(checkName("..."), ShouldBeNil)
			So(checkName(""), ShouldErrLike, "empty name")
			So(checkName("."), ShouldErrLike, `relative name "." not allowed`)
			So(checkName(".."), ShouldErrLike, `relative name ".." not allowed`)
			So(checkName("a/b"), ShouldErrLike, `bad char "/"`)
			So(checkName(`a\b`), ShouldErrLike, `bad char "\\"`)
			So(checkName("a\nb"), ShouldErrLike, `bad char "\n"`)
		})

		Convey("header round trip", func() {
			fi := &FileInfo{
				Name:     "report.pdf",
				MimeType: "application/pdf",
				User:     "robbie",
				Group:    "staff",
				Size:     123456,
				Mode:     0640,
				Created:  time.Unix(1400000000, 5),
				Modified: time.Unix(1500000000, 0),
				Accessed: time.Unix(1600000000, 999),
			}
			h, err := fi.Header()
			So(err, ShouldBeNil)
			So(h.Len(), ShouldBeLessThanOrEqualTo, 4095)

			got, err := ParseFileInfo(h)
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, fi.Name)
			So(got.MimeType, ShouldEqual, fi.MimeType)
			So(got.User, ShouldEqual, fi.User)
			So(got.Group, ShouldEqual, fi.Group)
			So(got.Size, ShouldEqual, fi.Size)
			So(got.Mode, ShouldEqual, fi.Mode)
			So(got.Created.Equal(fi.Created), ShouldBeTrue)
			So(got.Modified.Equal(fi.Modified), ShouldBeTrue)
			So(got.Accessed.Equal(fi.Accessed), ShouldBeTrue)
			So(got.IsFolder, ShouldBeFalse)
		})

		Convey("minimal folder", func() {
			h, err := (&FileInfo{Name: "dir", IsFolder: true}).Header()
			So(err, ShouldBeNil)
			So(h.Fields(), ShouldHaveLength, 2)

			got, err := ParseFileInfo(h)
			So(err, ShouldBeNil)
			So(got.IsFolder, ShouldBeTrue)
			So(got.Mode, ShouldEqual, os.ModeDir)
			So(got.Modified.IsZero(), ShouldBeTrue)
		})

		Convey("bad names", func() {
			_, err := (&FileInfo{Name: "a/b"}).Header()
			So(err, ShouldErrLike, "bad char")

			h := &header.Header{}
			So(h.AddString(fieldName, ".."), ShouldBeNil)
			_, err = ParseFileInfo(h)
			So(err, ShouldErrLike, "not allowed")

			_, err = ParseFileInfo(&header.Header{})
			So(err, ShouldErrLike, "empty name")
		})

		Convey("kind mismatch", func() {
			_, err := FileBottle(&FileInfo{Name: "d", IsFolder: true}, nil)
			So(err, ShouldErrLike, `"d" is a folder`)
			_, err = FolderBottle(&FileInfo{Name: "f"})
			So(err, ShouldErrLike, `"f" is not a folder`)
		})
	})
}
