// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package header

import (
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	. "go.chromium.org/luci/common/testing/assertions"
)

func TestHeader(t *testing.T) {
	t.Parallel()

	Convey("Header", t, func() {
		Convey("empty", func() {
			h := &Header{}
			So(h.Encode(), ShouldBeEmpty)
			So(h.Len(), ShouldEqual, 0)

			dec, err := Decode(nil)
			So(err, ShouldBeNil)
			So(dec.Fields(), ShouldBeEmpty)
		})

		Convey("nil reads as empty", func() {
			var h *Header
			So(h.Len(), ShouldEqual, 0)
			_, ok := h.String(0)
			So(ok, ShouldBeFalse)
		})

		Convey("encode", func() {
			h := &Header{}
			So(h.AddString(0, "hello"), ShouldBeNil)
			So(h.AddInt(1, 300), ShouldBeNil)
			So(h.AddBool(2), ShouldBeNil)

			So(h.Encode(), ShouldResemble, []byte{
				0x00, 0x05, 'h', 'e', 'l', 'l', 'o', // string 0, len 5
				0x84, 0x02, 0x2c, 0x01, // int 1, len 2, 300 packed
				0xc8, 0x00, // bool 2
			})
			So(h.Len(), ShouldEqual, 13)
		})

		Convey("round trip", func() {
			h := &Header{}
			So(h.AddString(0, "file.txt"), ShouldBeNil)
			So(h.AddStrings(1, []string{"a", "", "b"}), ShouldBeNil)
			So(h.AddInt(0, 987654321), ShouldBeNil)
			So(h.AddInt(3, 0), ShouldBeNil)
			So(h.AddBool(0), ShouldBeNil)

			dec, err := Decode(h.Encode())
			So(err, ShouldBeNil)
			So(dec.Fields(), ShouldHaveLength, 5)

			s, ok := dec.String(0)
			So(ok, ShouldBeTrue)
			So(s, ShouldEqual, "file.txt")

			ss, ok := dec.Strings(1)
			So(ok, ShouldBeTrue)
			So(ss, ShouldResemble, []string{"a", "", "b"})

			n, ok := dec.Int(0)
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 987654321)

			n, ok = dec.Int(3)
			So(ok, ShouldBeTrue)
			So(n, ShouldEqual, 0)

			_, ok = dec.Int(4)
			So(ok, ShouldBeFalse)

			So(dec.Bool(0), ShouldBeTrue)
			So(dec.Bool(1), ShouldBeFalse)
		})

		Convey("ids are scoped by type", func() {
			h := &Header{}
			So(h.AddString(7, "x"), ShouldBeNil)
			So(h.AddInt(7, 9), ShouldBeNil)

			s, _ := h.String(7)
			So(s, ShouldEqual, "x")
			n, _ := h.Int(7)
			So(n, ShouldEqual, 9)
		})

		Convey("bad adds", func() {
			h := &Header{}
			So(h.AddString(16, "x"), ShouldErrLike, "string field id 16 out of range")
			So(h.AddBool(-1), ShouldErrLike, "out of range")
			So(h.AddString(0, strings.Repeat("x", MaxFieldSize+1)), ShouldErrLike, "too large: 1024 > 1023")
			So(h.Fields(), ShouldBeEmpty)
		})

		Convey("bad decodes", func() {
			Convey("truncated descriptor", func() {
				_, err := Decode([]byte{0x00})
				So(err, ShouldErrLike, "truncated field descriptor")
				So(errors.Is(err, ErrMalformed), ShouldBeTrue)
			})

			Convey("truncated data", func() {
				_, err := Decode([]byte{0x00, 0x05, 'h', 'i'})
				So(err, ShouldErrLike, "string field 0 wants 5 bytes, 2 remain")
				So(errors.Is(err, ErrMalformed), ShouldBeTrue)
			})

			Convey("reserved type", func() {
				_, err := Decode([]byte{0x40, 0x00})
				So(err, ShouldErrLike, "unknown field type 1")
			})

			Convey("oversize int", func() {
				_, err := Decode([]byte{0x80, 0x09, 1, 2, 3, 4, 5, 6, 7, 8, 9})
				So(err, ShouldErrLike, "int field 0 is 9 bytes")
			})
		})
	})
}
