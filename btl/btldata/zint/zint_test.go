// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package zint

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	. "go.chromium.org/luci/common/testing/assertions"
)

func hexLength(n int) string {
	buf, err := EncodeLength(n)
	So(err, ShouldBeNil)
	return hex.EncodeToString(buf)
}

func unhex(s string) []byte {
	ret, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return ret
}

func TestPacked(t *testing.T) {
	t.Parallel()

	Convey("Packed ints", t, func() {
		Convey("encode", func() {
			So(hex.EncodeToString(EncodePackedInt(0)), ShouldEqual, "00")
			So(hex.EncodeToString(EncodePackedInt(100)), ShouldEqual, "64")
			So(hex.EncodeToString(EncodePackedInt(129)), ShouldEqual, "81")
			So(hex.EncodeToString(EncodePackedInt(127)), ShouldEqual, "7f")
			So(hex.EncodeToString(EncodePackedInt(256)), ShouldEqual, "0001")
			So(hex.EncodeToString(EncodePackedInt(987654321)), ShouldEqual, "b168de3a")
		})

		Convey("decode", func() {
			So(DecodePackedInt(unhex("00")), ShouldEqual, 0)
			So(DecodePackedInt(unhex("0a")), ShouldEqual, 10)
			So(DecodePackedInt(unhex("ff")), ShouldEqual, 255)
			So(DecodePackedInt(unhex("64")), ShouldEqual, 100)
			So(DecodePackedInt(unhex("81")), ShouldEqual, 129)
			So(DecodePackedInt(unhex("7f")), ShouldEqual, 127)
			So(DecodePackedInt(unhex("0001")), ShouldEqual, 256)
			So(DecodePackedInt(unhex("b168de3a")), ShouldEqual, 987654321)
		})

		Convey("non-canonical input still decodes", func() {
			So(DecodePackedInt(unhex("0500")), ShouldEqual, 5)
		})

		Convey("ignores bytes past 64 bits", func() {
			So(DecodePackedInt(unhex("ffffffffffffffff01")), ShouldEqual, uint64(1<<64-1))
		})

		Convey("append", func() {
			So(AppendPackedInt([]byte{0xaa}, 256), ShouldResemble, []byte{0xaa, 0, 1})
		})

		Convey("round trip", func() {
			rng := rand.New(rand.NewSource(1))
			for i := 0; i < 1000; i++ {
				n := rng.Uint64() >> uint(rng.Intn(64))
				So(DecodePackedInt(EncodePackedInt(n)), ShouldEqual, n)
			}
			So(DecodePackedInt(EncodePackedInt(1<<64-1)), ShouldEqual, uint64(1<<64-1))
		})
	})
}

func TestLength(t *testing.T) {
	t.Parallel()

	Convey("Lengths", t, func() {
		Convey("encode", func() {
			So(hexLength(0), ShouldEqual, "00")
			So(hexLength(1), ShouldEqual, "01")
			So(hexLength(100), ShouldEqual, "64")
			So(hexLength(129), ShouldEqual, "8102")
			So(hexLength(127), ShouldEqual, "7f")
			So(hexLength(128), ShouldEqual, "f0")
			So(hexLength(256), ShouldEqual, "f1")
			So(hexLength(1024), ShouldEqual, "f3")
			So(hexLength(12345), ShouldEqual, "d98101")
			So(hexLength(3998778), ShouldEqual, "ea43d003")
			So(hexLength(87654321), ShouldEqual, "e1fb9753")
			So(hexLength(1<<21), ShouldEqual, "fe")
			So(hexLength(EndOfAllStreams), ShouldEqual, "ff")
		})

		Convey("powers of two", func() {
			for p := uint(7); p <= 21; p++ {
				buf, err := EncodeLength(1 << p)
				So(err, ShouldBeNil)
				So(buf, ShouldHaveLength, 1)
				So(buf[0], ShouldNotEqual, 0xff)
			}

			Convey("past 2^21 use the long form", func() {
				buf, err := EncodeLength(1 << 22)
				So(err, ShouldBeNil)
				So(buf, ShouldHaveLength, 4)
			})
		})

		Convey("overflow", func() {
			_, err := EncodeLength(1 << 28)
			So(err, ShouldErrLike, "length overflow")
			So(errors.Is(err, ErrLengthOverflow), ShouldBeTrue)

			_, err = EncodeLength(1 << 40)
			So(errors.Is(err, ErrLengthOverflow), ShouldBeTrue)

			_, err = EncodeLength(-2)
			So(err, ShouldErrLike, "negative length -2")

			buf, err := AppendLength([]byte{1}, MaxLength+1)
			So(err, ShouldNotBeNil)
			So(buf, ShouldResemble, []byte{1})
		})

		Convey("length of length", func() {
			So(LengthLength(0x00), ShouldEqual, 1)
			So(LengthLength(0x01), ShouldEqual, 1)
			So(LengthLength(0x64), ShouldEqual, 1)
			So(LengthLength(0x81), ShouldEqual, 2)
			So(LengthLength(0x7f), ShouldEqual, 1)
			So(LengthLength(0xf1), ShouldEqual, 1)
			So(LengthLength(0xf3), ShouldEqual, 1)
			So(LengthLength(0xd9), ShouldEqual, 3)
			So(LengthLength(0xea), ShouldEqual, 4)
			So(LengthLength(0xfe), ShouldEqual, 1)
			So(LengthLength(0xff), ShouldEqual, 1)
		})

		Convey("decode", func() {
			decode := func(s string) int {
				n, err := DecodeLength(unhex(s))
				So(err, ShouldBeNil)
				return n
			}
			So(decode("00"), ShouldEqual, EndOfStream)
			So(decode("01"), ShouldEqual, 1)
			So(decode("64"), ShouldEqual, 100)
			So(decode("8102"), ShouldEqual, 129)
			So(decode("7f"), ShouldEqual, 127)
			So(decode("f1"), ShouldEqual, 256)
			So(decode("f3"), ShouldEqual, 1024)
			So(decode("d98101"), ShouldEqual, 12345)
			So(decode("ea43d003"), ShouldEqual, 3998778)
			So(decode("e1fb9753"), ShouldEqual, 87654321)
			So(decode("fe"), ShouldEqual, 1<<21)
			So(decode("ff"), ShouldEqual, EndOfAllStreams)
		})

		Convey("decode short", func() {
			_, err := DecodeLength(nil)
			So(errors.Is(err, ErrShortBuffer), ShouldBeTrue)

			_, err = DecodeLength(unhex("d981"))
			So(err, ShouldErrLike, "short buffer")
		})

		Convey("decode multi-byte zero", func() {
			for _, s := range []string{"8000", "c00000", "e0000000"} {
				_, err := DecodeLength(unhex(s))
				So(errors.Is(err, ErrZeroLength), ShouldBeTrue)
			}
			_, err := ReadLength(bytes.NewReader(unhex("8000")))
			So(err, ShouldErrLike, "multi-byte zero length")
		})

		Convey("0xff is never produced for a real length", func() {
			for _, n := range []int{0, 1, 127, 128, 1 << 21, 1<<21 + 1, 1 << 22, MaxLength} {
				buf, err := EncodeLength(n)
				So(err, ShouldBeNil)
				So(buf[0], ShouldNotEqual, 0xff)
			}
		})

		Convey("round trip", func() {
			check := func(n int) {
				buf, err := EncodeLength(n)
				So(err, ShouldBeNil)
				So(buf, ShouldHaveLength, LengthLength(buf[0]))
				got, err := DecodeLength(buf)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, n)
			}

			for p := uint(0); p < 28; p++ {
				for _, d := range []int{-1, 0, 1} {
					if n := 1<<p + d; n >= 0 {
						check(n)
					}
				}
			}
			for _, n := range []int{8191, 8192, 1<<21 - 1, MaxLength} {
				check(n)
			}

			rng := rand.New(rand.NewSource(4))
			for i := 0; i < 5000; i++ {
				check(rng.Intn(MaxLength + 1))
			}
		})

		Convey("read", func() {
			r := bytes.NewReader(unhex("8102ff00d98101"))
			for _, expect := range []int{129, EndOfAllStreams, EndOfStream, 12345} {
				n, err := ReadLength(r)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, expect)
			}
			_, err := ReadLength(r)
			So(err, ShouldEqual, io.EOF)

			_, err = ReadLength(bytes.NewReader(unhex("ea43")))
			So(err, ShouldEqual, io.ErrUnexpectedEOF)
		})
	})
}
