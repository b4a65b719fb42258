// Copyright 2017 Robert Iannucci Jr. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	flag "github.com/spf13/pflag"

	"go.chromium.org/luci/common/errors"

	"github.com/riannucci/fourbottle/btl"
	"github.com/riannucci/fourbottle/btl/btldata"
)

const envPrefix = "BOTTLE_"

// config is the merged configuration of one command. Later sources override
// earlier ones: the config file, then BOTTLE_* environment variables, then
// explicitly set flags.
type config struct {
	Verbose bool `koanf:"verbose"`

	// pack
	Output    string `koanf:"output"`
	Compress  string `koanf:"compress"`
	Level     int    `koanf:"level"`
	Hash      string `koanf:"hash"`
	Encrypt   bool   `koanf:"encrypt"`
	ChunkSize int    `koanf:"chunk-size"`

	// unpack and list
	Dir      string `koanf:"dir"`
	NoVerify bool   `koanf:"no-verify"`
	CaseSafe bool   `koanf:"case-safe"`

	// Only read from the config file or environment, to keep it out of
	// shell history.
	Passphrase string `koanf:"passphrase"`
}

func newFlagSet(cmd string) (*flag.FlagSet, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.String("config", "", "Path to a TOML config file to load.")
	fs.BoolP("verbose", "v", false, "Enable debug logging.")

	switch cmd {
	case "pack":
		fs.StringP("output", "o", "-", "Where to write the archive (- for stdout).")
		fs.String("compress", "flate", "Compression: none, flate, zstd or s2.")
		fs.Int("level", btldata.DefaultLevel, "Compression level (0 for the scheme's default).")
		fs.String("hash", btl.DefaultHash().String(), "Hash: none, sha256, sha512, blake2s, blake2b, sha3-256 or sha3-512.")
		fs.Bool("encrypt", false, "Encrypt with the passphrase from $BOTTLE_PASSPHRASE.")
		fs.Int("chunk-size", btldata.DefaultChunkSize, "Read size for packed files.")

	case "unpack":
		fs.StringP("dir", "C", ".", "Directory to unpack into.")
		fallthrough

	case "list":
		fs.Bool("no-verify", false, "Skip hash verification.")
		fs.Bool("case-safe", false, "Reject folder entries which differ only in case.")

	default:
		return nil, errors.Reason("unknown command %q", cmd).Err()
	}
	return fs, nil
}

// envKey maps BOTTLE_CHUNK_SIZE to chunk-size.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", "-")
}

// loadConfig parses the flags of cmd from args and merges them with the
// config file and environment. It returns the remaining positional args.
func loadConfig(cmd string, args []string) (*config, []string, error) {
	fs, err := newFlagSet(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	ko := koanf.New(".")
	if cfgPath, _ := fs.GetString("config"); cfgPath != "" {
		if err := ko.Load(file.Provider(cfgPath), toml.Parser()); err != nil {
			return nil, nil, errors.Annotate(err, "loading %q", cfgPath).Err()
		}
	}
	if err := ko.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, nil, errors.Annotate(err, "loading environment").Err()
	}
	if err := ko.Load(posflag.Provider(fs, ".", ko), nil); err != nil {
		return nil, nil, errors.Annotate(err, "loading flags").Err()
	}

	cfg := &config{}
	if err := ko.Unmarshal("", cfg); err != nil {
		return nil, nil, errors.Annotate(err, "parsing config").Err()
	}
	return cfg, fs.Args(), nil
}

// compression returns the selected CompressionScheme, or 0 for none.
func (cfg *config) compression() (btldata.CompressionScheme, error) {
	if cfg.Compress == "none" {
		return 0, nil
	}
	return btldata.ParseCompressionScheme(cfg.Compress)
}

// hash returns the selected HashScheme, or 0 for none.
func (cfg *config) hash() (btldata.HashScheme, error) {
	if cfg.Hash == "none" {
		return 0, nil
	}
	return btldata.ParseHashScheme(cfg.Hash)
}
