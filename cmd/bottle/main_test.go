// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	. "go.chromium.org/luci/common/testing/assertions"

	"github.com/riannucci/fourbottle/btl"
)

func TestConfig(t *testing.T) {
	Convey("loadConfig", t, func() {
		Convey("defaults", func() {
			cfg, rest, err := loadConfig("pack", []string{"some/path"})
			So(err, ShouldBeNil)
			So(rest, ShouldResemble, []string{"some/path"})
			So(cfg.Output, ShouldEqual, "-")
			So(cfg.Compress, ShouldEqual, "flate")
			So(cfg.Hash, ShouldEqual, btl.DefaultHash().String())
			hash, err := cfg.hash()
			So(err, ShouldBeNil)
			So(hash, ShouldEqual, btl.DefaultHash())
			So(cfg.Encrypt, ShouldBeFalse)
		})

		Convey("unknown command", func() {
			_, _, err := loadConfig("explode", nil)
			So(err, ShouldErrLike, `unknown command "explode"`)
		})

		Convey("layering", func() {
			dir, err := os.MkdirTemp("", "bottlecfg")
			So(err, ShouldBeNil)
			defer os.RemoveAll(dir)

			cfgPath := filepath.Join(dir, "bottle.toml")
			So(os.WriteFile(cfgPath, []byte("compress = \"zstd\"\nhash = \"blake2b\"\nlevel = 3\n"), 0600), ShouldBeNil)
			t.Setenv("BOTTLE_HASH", "sha3-512")
			t.Setenv("BOTTLE_CHUNK_SIZE", "4096")
			t.Setenv("BOTTLE_PASSPHRASE", "sekrit")

			cfg, _, err := loadConfig("pack", []string{"--config", cfgPath, "--level", "5", "x"})
			So(err, ShouldBeNil)
			So(cfg.Compress, ShouldEqual, "zstd")
			So(cfg.Hash, ShouldEqual, "sha3-512")
			So(cfg.Level, ShouldEqual, 5)
			So(cfg.ChunkSize, ShouldEqual, 4096)
			So(cfg.Passphrase, ShouldEqual, "sekrit")

			_, _, err = loadConfig("pack", []string{"--config", filepath.Join(dir, "missing.toml")})
			So(err, ShouldErrLike, "missing.toml")
		})

		Convey("schemes", func() {
			cfg := &config{Compress: "none", Hash: "none"}
			c, err := cfg.compression()
			So(err, ShouldBeNil)
			So(c, ShouldEqual, 0)
			h, err := cfg.hash()
			So(err, ShouldBeNil)
			So(h, ShouldEqual, 0)

			cfg = &config{Compress: "rar", Hash: "crc"}
			_, err = cfg.compression()
			So(err, ShouldErrLike, "unknown compression scheme")
			_, err = cfg.hash()
			So(err, ShouldErrLike, "unknown hash scheme")
		})
	})
}

func TestCommands(t *testing.T) {
	Convey("bottle", t, func() {
		ctx := context.Background()

		dir, err := os.MkdirTemp("", "bottle")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		src := filepath.Join(dir, "src")
		So(os.MkdirAll(filepath.Join(src, "inner"), 0755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(src, "hello.txt"), []byte("hello"), 0644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(src, "inner", "data"), bytes.Repeat([]byte("data"), 1000), 0644), ShouldBeNil)
		archive := filepath.Join(dir, "src.btl")

		Convey("no args", func() {
			So(run(ctx, nil, nil, nil), ShouldErrLike, "usage: bottle")
		})

		Convey("pack, list, unpack", func() {
			So(run(ctx, []string{"pack", "--compress", "s2", "-o", archive, src}, nil, nil), ShouldBeNil)

			out := &bytes.Buffer{}
			So(run(ctx, []string{"list", archive}, nil, out), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			So(lines, ShouldHaveLength, 4)
			So(lines[0], ShouldEndWith, " src")
			So(lines[1], ShouldEndWith, " src/hello.txt")
			So(lines[2], ShouldEndWith, " src/inner")
			So(lines[3], ShouldEndWith, " src/inner/data")
			So(lines[3], ShouldContainSubstring, " 4000 ")

			dest := filepath.Join(dir, "dest")
			So(run(ctx, []string{"unpack", "-C", dest, archive}, nil, nil), ShouldBeNil)
			got, err := os.ReadFile(filepath.Join(dest, "src", "hello.txt"))
			So(err, ShouldBeNil)
			So(string(got), ShouldEqual, "hello")
		})

		Convey("stdout and stdin", func() {
			packed := &bytes.Buffer{}
			So(run(ctx, []string{"pack", "--hash", "none", filepath.Join(src, "hello.txt")}, nil, packed), ShouldBeNil)

			out := &bytes.Buffer{}
			So(run(ctx, []string{"list", "-"}, bytes.NewReader(packed.Bytes()), out), ShouldBeNil)
			So(out.String(), ShouldEndWith, " hello.txt\n")
		})

		Convey("encrypted", func() {
			So(run(ctx, []string{"pack", "--encrypt", "-o", archive, src}, nil, nil), ShouldErrLike, "needs a passphrase")

			t.Setenv("BOTTLE_PASSPHRASE", "open sesame")
			So(run(ctx, []string{"pack", "--encrypt", "-o", archive, src}, nil, nil), ShouldBeNil)

			out := &bytes.Buffer{}
			So(run(ctx, []string{"list", archive}, nil, out), ShouldBeNil)
			So(out.String(), ShouldContainSubstring, "src/inner/data")

			t.Setenv("BOTTLE_PASSPHRASE", "")
			So(run(ctx, []string{"list", archive}, nil, &bytes.Buffer{}), ShouldErrLike, "needs a passphrase")
		})

		Convey("bad args", func() {
			So(run(ctx, []string{"list"}, nil, nil), ShouldErrLike, "expected exactly one ARCHIVE")
			So(run(ctx, []string{"pack", "--compress", "rar", src}, nil, nil), ShouldErrLike, "unknown compression scheme")
		})
	})
}
