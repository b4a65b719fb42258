// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command bottle packs, unpacks and lists 4bottle archives.
//
//	bottle pack [-o OUT] [--compress SCHEME] [--hash SCHEME] [--encrypt] PATH
//	bottle unpack [-C DIR] ARCHIVE
//	bottle list ARCHIVE
//
// ARCHIVE may be - for stdin. Every flag may also be set in a TOML file given
// with --config, or with a BOTTLE_ environment variable (for example
// BOTTLE_COMPRESS=zstd). The passphrase for --encrypt and for reading
// encrypted archives comes from BOTTLE_PASSPHRASE or the config file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/iotools"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/logging/gologger"

	"github.com/riannucci/fourbottle/btl"
	"github.com/riannucci/fourbottle/btl/btldata"
)

const usage = `usage: bottle pack|unpack|list [flags] PATH

Run "bottle COMMAND --help" for the flags of COMMAND.
`

func openArchive(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

func onePath(args []string, what string) (string, error) {
	if len(args) != 1 {
		return "", errors.Reason("expected exactly one %s, got %d args", what, len(args)).Err()
	}
	return args[0], nil
}

func (cfg *config) openOptions() []btl.OpenOption {
	opts := []btl.OpenOption{btl.WithCaseSafe(cfg.CaseSafe)}
	if cfg.NoVerify {
		opts = append(opts, btl.WithVerification(btl.VerifyNever))
	}
	if cfg.Passphrase != "" {
		opts = append(opts, btl.WithPassphrase([]byte(cfg.Passphrase)))
	}
	return opts
}

func runPack(ctx context.Context, cfg *config, args []string, stdout io.Writer) (err error) {
	path, err := onePath(args, "PATH")
	if err != nil {
		return err
	}
	compress, err := cfg.compression()
	if err != nil {
		return err
	}
	hash, err := cfg.hash()
	if err != nil {
		return err
	}

	opts := []btl.CreateOption{
		btl.WithCompression(compress, cfg.Level),
		btl.WithHash(hash),
		btl.WithChunkSize(cfg.ChunkSize),
	}
	if cfg.Encrypt {
		if cfg.Passphrase == "" {
			return errors.New("--encrypt needs a passphrase in $BOTTLE_PASSPHRASE")
		}
		opts = append(opts, btl.WithEncryption([]byte(cfg.Passphrase), btldata.KeyParams{}))
	}

	s, err := btl.Pack(ctx, path, opts...)
	if err != nil {
		return err
	}

	out := stdout
	if cfg.Output != "-" {
		f, ferr := os.Create(cfg.Output)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		out = f
	}

	start := time.Now()
	cw := &iotools.CountingWriter{Writer: out}
	if _, err = btldata.WriteStream(ctx, cw, s); err != nil {
		return errors.Annotate(err, "packing %q", path).Err()
	}
	logging.Infof(ctx, "packed %q: %d bytes in %s", path, cw.Count, time.Since(start))
	return nil
}

func runUnpack(ctx context.Context, cfg *config, args []string, stdin io.Reader) error {
	path, err := onePath(args, "ARCHIVE")
	if err != nil {
		return err
	}
	r, err := openArchive(path, stdin)
	if err != nil {
		return err
	}
	defer r.Close()

	cr := &iotools.CountingReader{Reader: r}
	if err := btl.UnpackTo(ctx, cr, cfg.Dir, cfg.openOptions()...); err != nil {
		return err
	}
	logging.Infof(ctx, "unpacked %d bytes to %q", cr.Count, cfg.Dir)
	return nil
}

func runList(ctx context.Context, cfg *config, args []string, stdin io.Reader, stdout io.Writer) error {
	path, err := onePath(args, "ARCHIVE")
	if err != nil {
		return err
	}
	r, err := openArchive(path, stdin)
	if err != nil {
		return err
	}
	defer r.Close()

	ents, err := btl.List(ctx, r, cfg.openOptions()...)
	// print what we got even on error; it shows where the archive went bad.
	for _, e := range ents {
		mtime := "-"
		if !e.Info.Modified.IsZero() {
			mtime = e.Info.Modified.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(stdout, "%s %10d %s %s\n", e.Info.Mode, e.Info.Size, mtime, strings.Join(e.Path, "/"))
	}
	return err
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(strings.TrimSpace(usage))
	}
	cmd := args[0]
	cfg, rest, err := loadConfig(cmd, args[1:])
	if err != nil {
		return err
	}
	if cfg.Verbose {
		ctx = logging.SetLevel(ctx, logging.Debug)
	}

	switch cmd {
	case "pack":
		return runPack(ctx, cfg, rest, stdout)
	case "unpack":
		return runUnpack(ctx, cfg, rest, stdin)
	default:
		return runList(ctx, cfg, rest, stdin, stdout)
	}
}

func main() {
	ctx := gologger.StdConfig.Use(context.Background())
	ctx = logging.SetLevel(ctx, logging.Info)

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if err == flag.ErrHelp {
			return
		}
		logging.Errorf(ctx, "%s", err)
		os.Exit(1)
	}
}
